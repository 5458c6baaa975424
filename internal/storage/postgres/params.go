package postgres

import (
	"maps"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// encodeParams renders gateway params as a JSON object with sorted keys.
func encodeParams(params map[string]string) []byte {
	var e jx.Encoder
	e.ObjStart()
	for _, k := range slices.Sorted(maps.Keys(params)) {
		e.FieldStart(k)
		e.Str(params[k])
	}
	e.ObjEnd()
	return e.Bytes()
}

// decodeParams parses a JSON object of string values.
func decodeParams(data []byte) (map[string]string, error) {
	params := map[string]string{}
	if len(data) == 0 {
		return params, nil
	}
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		v, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "param %q", key)
		}
		params[string(key)] = v
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode params")
	}
	return params, nil
}

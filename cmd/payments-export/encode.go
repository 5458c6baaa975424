package main

import (
	"maps"
	"slices"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/merchant-billing/internal/domain/payment"
)

// encodePayment writes p as one JSON object.
func encodePayment(e *jx.Encoder, p payment.Payment) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("payable_kind", func(e *jx.Encoder) { e.Str(string(p.Payable.Kind)) })
		e.Field("payable_id", func(e *jx.Encoder) { e.Str(p.Payable.ID) })
		e.Field("position", func(e *jx.Encoder) { e.Int(p.Position) })
		e.Field("action", func(e *jx.Encoder) { e.Str(string(p.Action)) })
		e.Field("amount", func(e *jx.Encoder) { e.Int64(p.Amount.Amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(p.Amount.Currency) })
		e.Field("success", func(e *jx.Encoder) { e.Bool(p.Success) })
		if p.Reference != "" {
			e.Field("reference", func(e *jx.Encoder) { e.Str(p.Reference) })
		}
		if p.Message != "" {
			e.Field("message", func(e *jx.Encoder) { e.Str(p.Message) })
		}
		e.Field("params", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, k := range slices.Sorted(maps.Keys(p.Params)) {
					e.Field(k, func(e *jx.Encoder) { e.Str(p.Params[k]) })
				}
			})
		})
		e.Field("test", func(e *jx.Encoder) { e.Bool(p.Test) })
		if p.PaymentType != "" {
			e.Field("payment_type", func(e *jx.Encoder) { e.Str(p.PaymentType) })
		}
		if p.Occurrences > 0 {
			e.Field("occurrences", func(e *jx.Encoder) { e.Int(p.Occurrences) })
		}
		e.Field("created_at", func(e *jx.Encoder) { e.Str(p.CreatedAt.UTC().Format(time.RFC3339Nano)) })
	})
}

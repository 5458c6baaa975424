package money

// zeroDecimal lists currencies without minor units.
var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "ISK": {}, "JPY": {},
	"KMF": {}, "KRW": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// Exponent returns the number of minor-unit digits of currency.
func Exponent(currency string) int32 {
	if _, ok := zeroDecimal[currency]; ok {
		return 0
	}
	return 2
}

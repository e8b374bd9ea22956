package square

import (
	"math"
	"strings"
)

// ISO 4217 currencies whose minor unit is not the default two decimals.
var currencyExponents = map[string]int{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0,
	"VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// MinorUnits converts an order total to the currency's smallest unit by
// rounding half away from zero. 19.999 USD is 2000 cents, never 1999.
func MinorUnits(total float64, currency string) int64 {
	exponent := 2
	if e, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		exponent = e
	}
	return int64(math.Round(total * math.Pow10(exponent)))
}

package preprocess

import (
	"math"
	"strconv"
	"strings"
)

var currencySymbols = []string{"$", "€", "£", "¥", "USD", "EUR", "GBP", "JPY"}

// ParsePrice parses a quoted premium. It accepts currency symbols, European
// decimals (1.234,56 or 1 234,56), a lone decimal comma and parentheses for
// negatives. Empty and NA-like cells are not prices.
func ParsePrice(raw string) (float64, bool) {
	cleanVal := strings.TrimSpace(raw)
	switch strings.ToLower(cleanVal) {
	case "", "na", "nan", "null", "-":
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	for _, symbol := range currencySymbols {
		cleanVal = strings.ReplaceAll(cleanVal, symbol, "")
	}
	cleanVal = strings.TrimSpace(cleanVal)

	hasComma := strings.Contains(cleanVal, ",")
	hasPeriod := strings.Contains(cleanVal, ".")
	hasSpace := strings.Contains(cleanVal, " ")

	switch {
	case hasComma && (hasPeriod || hasSpace):
		// the last separator is the decimal one
		if strings.LastIndex(cleanVal, ",") > strings.LastIndex(cleanVal, ".") {
			cleanVal = strings.NewReplacer(".", "", " ", "", ",", ".").Replace(cleanVal)
		} else {
			cleanVal = strings.NewReplacer(",", "", " ", "").Replace(cleanVal)
		}
	case hasComma:
		cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
	default:
		cleanVal = strings.ReplaceAll(cleanVal, " ", "")
	}

	if isNegative {
		cleanVal = "-" + cleanVal
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

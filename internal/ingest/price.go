package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// Currency suffixes the origin site uses, longest tokens first.
var currencyTokens = []struct {
	token    string
	currency string
}{
	{"TL", "TL"},
	{"USD", "USD"},
	{"EUR", "EUR"},
	{"$", "USD"},
	{"€", "EUR"},
	{"₺", "TL"},
}

var priceNumber = regexp.MustCompile(`[\d.,]+`)

// ParsePrice converts localized currency text to a non-negative float.
// Dots are thousands separators, a comma is the decimal mark:
// "1.234.567 TL" → 1234567, "850,50 TL" → 850.50. Unparseable input
// yields 0 and an empty currency; the caller logs, nothing propagates.
func ParsePrice(raw string) (float64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ""
	}

	currency := ""
	for _, ct := range currencyTokens {
		if strings.Contains(raw, ct.token) {
			currency = ct.currency
			raw = strings.ReplaceAll(raw, ct.token, "")
			break
		}
	}

	num := priceNumber.FindString(raw)
	if num == "" {
		return 0, currency
	}

	if !hasDecimalDot(num) {
		num = strings.ReplaceAll(num, ".", "")
		num = strings.ReplaceAll(num, ",", ".")
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil || value < 0 {
		return 0, currency
	}
	return value, currency
}

// hasDecimalDot reports whether a lone dot is a decimal point rather
// than a thousands separator, as in prices lifted from structured data
// ("2500000.5"). A dot followed by exactly three digits stays a
// thousands separator.
func hasDecimalDot(num string) bool {
	dot := strings.Index(num, ".")
	return dot >= 0 &&
		!strings.Contains(num, ",") &&
		strings.Count(num, ".") == 1 &&
		len(num)-dot-1 != 3
}

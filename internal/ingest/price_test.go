package ingest

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw          string
		wantValue    float64
		wantCurrency string
	}{
		{"1.234.567 TL", 1234567, "TL"},
		{"4.250.000 TL", 4250000, "TL"},
		{"850,50 TL", 850.50, "TL"},
		{"1.250,75 TL", 1250.75, "TL"},
		{"32.000", 32000, ""},
		{"2500000.5", 2500000.5, ""},
		{"4250000", 4250000, ""},
		{"1.250 USD", 1250, "USD"},
		{"€ 980", 980, "EUR"},
		{"₺ 12.500", 12500, "TL"},
		{"N/A", 0, ""},
		{"Fiyat Sorunuz", 0, ""},
		{"", 0, ""},
	}

	for _, tt := range tests {
		value, currency := ParsePrice(tt.raw)
		if value != tt.wantValue || currency != tt.wantCurrency {
			t.Errorf("ParsePrice(%q) = (%.2f, %q); want (%.2f, %q)",
				tt.raw, value, currency, tt.wantValue, tt.wantCurrency)
		}
	}
}

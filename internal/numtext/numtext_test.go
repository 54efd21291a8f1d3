package numtext

import (
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"1234,56", 1234.56},
		{"1234.56", 1234.56},
		{"1 234,56", 1234.56},
		{"1.234.567,89", 1234567.89},
		{"1,234,567.89", 1234567.89},
		{"121", 121},
		{"€ 121,00", 121},
		{"-15,50", -15.5},
		{"", 0},
		{"garbage", 0},
		{"n/a", 0},
		{"--", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseAmount(tt.raw); got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Total com IVA", "TOTAL COM IVA"},
		{"líquido", "LIQUIDO"},
		{"Isenção", "ISENCAO"},
		{"já em maiúsculas", "JA EM MAIUSCULAS"},
	}

	for _, tt := range tests {
		if got := Canonicalize(tt.in); got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindLabeledNumber(t *testing.T) {
	text := "Artigos diversos\nTotal sem IVA: 100,00\nTotal IVA 23,00\nTotal com IVA - 123,00\n"

	tests := []struct {
		name   string
		labels []string
		want   float64
		found  bool
	}{
		{"first priority wins", []string{`TOTAL COM IVA`, `TOTAL`}, 123.00, true},
		{"falls through to later pattern", []string{`MONTANTE`, `TOTAL IVA`}, 23.00, true},
		{"colon separator", []string{`TOTAL SEM IVA`}, 100.00, true},
		{"absent", []string{`VALOR PAGO`}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindLabeledNumber(text, tt.labels)
			if ok != tt.found {
				t.Fatalf("FindLabeledNumber found = %v, want %v", ok, tt.found)
			}
			if got != tt.want {
				t.Errorf("FindLabeledNumber = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{100.004, 100.00},
		{100.005, 100.01},
		{121.0 / 1.21, 100.00},
		{-2.675, -2.68},
	}

	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package budget

import "testing"

func TestParseDollarString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12", 1200, false},
		{"$12", 1200, false},
		{"12.34", 1234, false},
		{"$12.34", 1234, false},
		{"0", 0, false},
		{"0.99", 99, false},
		{"1000", 100000, false},
		{"", 0, true},
		{"abc", 0, true},
		{"$", 0, true},
		{"12.34.56", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDollarString(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDollarString(%q) = %d, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDollarString(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDollarString(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatDollars(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{99, "$0.99"},
		{100, "$1.00"},
		{1234, "$12.34"},
		{50000, "$500.00"},
		{-250, "-$2.50"},
	}
	for _, tt := range tests {
		if got := FormatDollars(tt.cents); got != tt.want {
			t.Errorf("FormatDollars(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

// Parsing a formatted amount must round-trip for any non-negative value with
// at most two fractional digits.
func TestFormatParseRoundTrip(t *testing.T) {
	t.Parallel()
	for _, cents := range []int64{0, 1, 10, 99, 100, 101, 1234, 99999, 100000} {
		got, err := ParseDollarString(FormatDollars(cents))
		if err != nil {
			t.Fatalf("round trip of %d: %v", cents, err)
		}
		if got != cents {
			t.Errorf("round trip of %d = %d", cents, got)
		}
	}
}

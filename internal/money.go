package budget

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DollarsToCents converts a decimal dollar amount to integer cents, rounding
// to the nearest cent so values like 12.34 survive float representation.
func DollarsToCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

// FormatDollars renders integer cents as a conventional $X.YY string.
func FormatDollars(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// ParseDollarString parses a dollar amount like "12", "$12", "12.34" or
// "$12.34" into integer cents. An empty or non-numeric string is an error.
func ParseDollarString(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty dollar string: %w", ErrBadRequest)
	}
	s = strings.TrimPrefix(s, "$")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n * 100, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number %q: %w", s, ErrBadRequest)
	}
	return DollarsToCents(f), nil
}

package exporter

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Scales for FormatNumber.
const (
	Units    = 1.0
	Millions = 1e6
	Billions = 1e9
)

// FormatFloat formats v with the fewest digits that read back exactly.
// Missing values are empty cells.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatFixed formats v with exactly places decimals, rounding halves to even.
func FormatFixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixedBank(places)
}

// FormatNumber divides v by scale and formats it with places decimals and
// comma thousands separators, e.g. 1234567 as millions with 2 decimals is
// "1.23".
func FormatNumber(v, scale float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	d := decimal.NewFromFloat(v).Div(decimal.NewFromFloat(scale))
	s := d.StringFixedBank(places)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}

// FormatInt formats an int for CSV output
func FormatInt(i int) string {
	return strconv.Itoa(i)
}

// Package numtext provides locale-tolerant parsing of numbers scraped from
// OCR text, plus the text canonicalization used for label matching.
package numtext

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Canonicalize strips diacritics and uppercases, so label matching survives
// accent and case noise from OCR ("Total com IVA" vs "TOTAL COM ÍVA").
func Canonicalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}

// reAmountJunk removes everything that is not a digit, sign or separator.
var reAmountJunk = regexp.MustCompile(`[^0-9,.\-]`)

// ParseAmount parses a monetary string under both European and US separator
// conventions. When ',' and '.' both appear, the one occurring last is the
// decimal separator and the other is stripped as a thousands separator; a
// lone ',' is a decimal comma; a lone '.' is already decimal. Unparseable
// input yields 0.0, never an error.
func ParseAmount(raw string) float64 {
	s := reAmountJunk.ReplaceAllString(raw, "")
	if s == "" {
		return 0
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = keepLastAsDecimal(s, ',')
		} else {
			s = strings.ReplaceAll(s, ",", "")
			s = keepLastAsDecimal(s, '.')
		}
	case comma >= 0:
		s = keepLastAsDecimal(s, ',')
	case dot >= 0:
		s = keepLastAsDecimal(s, '.')
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// keepLastAsDecimal drops every occurrence of sep except the last, which is
// rewritten as '.'. Handles OCR junk like "1.234.567" or "12,345,67".
func keepLastAsDecimal(s string, sep byte) string {
	last := strings.LastIndexByte(s, sep)
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case i == last:
			b.WriteByte('.')
		case s[i] == sep:
			// thousands separator, skip
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

const numberPattern = `([0-9][0-9.,]*)`

// FindLabeledNumber searches canonicalized text for "<label> [:-]? <number>",
// trying each label pattern in priority order. The first match wins. The
// second return is false when no pattern matched.
//
// Label patterns are regular expressions and must already be in canonical
// form (uppercase, accent-free), since the text they are matched against is.
func FindLabeledNumber(text string, labelPatterns []string) (float64, bool) {
	canon := Canonicalize(text)
	for _, label := range labelPatterns {
		re, err := regexp.Compile(label + `\s*[:\-]?\s*` + numberPattern)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(canon); m != nil {
			return ParseAmount(m[1]), true
		}
	}
	return 0, false
}

// Round2 rounds a monetary amount to exactly 2 decimals (half away from
// zero, the usual invoice convention).
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

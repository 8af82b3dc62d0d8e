package parser

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MaxAmount guards against malformed input being misread as an
// astronomically large debt.
const MaxAmount = 1_000_000_000_000 // 10^12

// ErrBadAmount is returned for tokens the amount grammar does not accept.
var ErrBadAmount = errors.New("unrecognized amount")

// compoundRe matches the "50k5" shorthand: <int>k<int> = int*1000 + second*100.
var compoundRe = regexp.MustCompile(`^(\d+)k(\d+)$`)

var separatorReplacer = strings.NewReplacer(".", "", ",", "")

// ParseAmount converts an informal numeral token into an integer currency
// amount. Thousand/decimal separators are stripped, not interpreted
// positionally. Suffixes, in priority order: "triệu"/"tr" and "m" multiply
// by a million, "<int>k<int>" is the 50k5 = 50500 shorthand, a trailing "k"
// multiplies by a thousand, and a bare number is rounded to the nearest
// integer. Non-positive results, non-numeric remainders and results above
// MaxAmount are rejected.
func ParseAmount(token string) (int64, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	t = separatorReplacer.Replace(t)
	if t == "" {
		return 0, ErrBadAmount
	}

	var value float64
	switch {
	case strings.HasSuffix(t, "triệu"), strings.HasSuffix(t, "trieu"), strings.HasSuffix(t, "tr"):
		base := strings.TrimSuffix(t, "triệu")
		base = strings.TrimSuffix(base, "trieu")
		base = strings.TrimSuffix(base, "tr")
		n, err := strconv.ParseFloat(base, 64)
		if err != nil {
			return 0, ErrBadAmount
		}
		value = n * 1_000_000
	case compoundRe.MatchString(t):
		m := compoundRe.FindStringSubmatch(t)
		thousands, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, ErrBadAmount
		}
		hundreds, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0, ErrBadAmount
		}
		value = float64(thousands*1000 + hundreds*100)
	case strings.HasSuffix(t, "k"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(t, "k"), 64)
		if err != nil {
			return 0, ErrBadAmount
		}
		value = n * 1000
	case strings.HasSuffix(t, "m"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(t, "m"), 64)
		if err != nil {
			return 0, ErrBadAmount
		}
		value = n * 1_000_000
	default:
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, ErrBadAmount
		}
		value = n
	}

	rounded := int64(math.Round(value))
	if rounded <= 0 || rounded > MaxAmount {
		return 0, ErrBadAmount
	}
	return rounded, nil
}

var vnPrinter = message.NewPrinter(language.Vietnamese)

// FormatAmount renders an amount with Vietnamese thousand separators
// (50000 -> "50.000").
func FormatAmount(n int64) string {
	return vnPrinter.Sprintf("%d", n)
}

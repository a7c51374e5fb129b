package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Bare or currency-prefixed amounts. Only two-digit fractions are money;
	// other fraction lengths are read as a separate integer token.
	moneyTokenRe = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?`)

	trailingAmountRe = regexp.MustCompile(`(?:^|[^A-Za-z0-9])(-?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)\s*$`)
	signedAmountRe   = regexp.MustCompile(`-?\d+(?:,\d{3})*(?:\.\d{1,2})?`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

const maxMoneyValue = 100000

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Round3 rounds half away from zero to three decimal places.
func Round3(v float64) float64 {
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}

// ToCents converts an amount to integer cents.
func ToCents(v float64) int64 {
	return decimal.NewFromFloat(v).Round(2).Shift(2).IntPart()
}

// FromCents converts integer cents back to an amount.
func FromCents(c int64) float64 {
	return decimal.New(c, -2).InexactFloat64()
}

// NearInteger reports whether v is within tol of a whole number.
func NearInteger(v, tol float64) bool {
	return math.Abs(v-math.Round(v)) < tol
}

// ParseMoneyValues returns every amount on the line in reading order,
// keeping only values in (0, 100000).
func ParseMoneyValues(text string) []float64 {
	var values []float64
	add := func(s string) {
		v, err := strconv.ParseFloat(s, 64)
		if err == nil && v > 0 && v < maxMoneyValue {
			values = append(values, v)
		}
	}
	for _, m := range moneyTokenRe.FindAllStringSubmatch(text, -1) {
		whole := strings.ReplaceAll(m[1], ",", "")
		frac := m[2]
		if len(frac) == 2 {
			add(whole + "." + frac)
			continue
		}
		add(whole)
		if frac != "" {
			add(frac)
		}
	}
	return values
}

// ParseTrailingAmount reads the signed number that ends the line. A number glued
// to a letter (tax ids) or followed by a percent sign does not count.
func ParseTrailingAmount(text string) (float64, bool) {
	cleaned := strings.TrimRight(CollapseSpaces(text), ":;-")
	m := trailingAmountRe.FindStringSubmatch(cleaned)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseLastSignedAmount returns the last signed number on the line.
func ParseLastSignedAmount(text string) (float64, bool) {
	var last string
	for _, loc := range signedAmountRe.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && isDigit(text[loc[0]-1]) {
			continue
		}
		last = text[loc[0]:loc[1]]
	}
	if last == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(last, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CollapseSpaces folds whitespace runs into single spaces and trims the ends.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

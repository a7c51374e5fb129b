package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	gluedTwoDecimalRe   = regexp.MustCompile(`(\d+\.\d{2})(\d+\.\d{2})\b`)
	gluedThreeDecimalRe = regexp.MustCompile(`(\d+\.\d{2})(\d+\.\d{3})\b`)
	gluedQtyUnitRe      = regexp.MustCompile(`\b([1-9])(\d{2,4}\.\d{1,2})\b`)

	softRemoveRes = func() []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(SoftRemoveTerms))
		for i, t := range SoftRemoveTerms {
			out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`)
		}
		return out
	}()

	nonItemRe     = regexp.MustCompile(`(?i)` + wordAlternation(NonItemTerms))
	nonMenuRe     = regexp.MustCompile(`(?i)` + wordAlternation(NonMenuTerms))
	tableEndRe    = regexp.MustCompile(`(?i)` + wordAlternation(TableEndTerms))
	tableHeaderRe = regexp.MustCompile(`(?i)` + wordAlternation(HeaderNameColumns) + `.*` +
		wordAlternation(HeaderQtyColumns) + `.*` + wordAlternation(HeaderAmountColumns))

	qtyMarkerRe     = regexp.MustCompile(`(?i)\b(?:qty|quantity)\s*[:=-]?\s*(\d+(?:\.\d+)?)\b`)
	multiplierRe    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*[x*]\b`)
	trailingTimesRe = regexp.MustCompile(`(?i)\bx\s*(\d+(?:\.\d+)?)\b`)
	standaloneNumRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	amountInNameRe  = regexp.MustCompile(`(?:₹|Rs\.?|INR|\$)?\s*\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?`)
	nameJunkRe      = regexp.MustCompile(`[^A-Za-z0-9 &()/+-]`)
	nameKeyJunkRe   = regexp.MustCompile(`[^a-z0-9 ]`)
)

const maxNormalizePasses = 8

// NormalizeLineText repairs glued numeric columns, drops separators and strips
// soft words so the line can be matched against item row shapes.
func NormalizeLineText(line string) string {
	text := splitUntilStable(line, gluedTwoDecimalRe)
	text = splitUntilStable(text, gluedThreeDecimalRe)
	text = splitGluedQuantity(text)
	text = strings.ReplaceAll(text, "|", " ")
	text = CollapseSpaces(text)
	for _, re := range softRemoveRes {
		text = re.ReplaceAllString(text, " ")
	}
	return CollapseSpaces(text)
}

// splitUntilStable inserts a space between two glued amounts; chains such as
// "1.002.003.00" need more than one pass.
func splitUntilStable(text string, re *regexp.Regexp) string {
	for i := 0; i < maxNormalizePasses; i++ {
		next := re.ReplaceAllString(text, "$1 $2")
		if next == text {
			break
		}
		text = next
	}
	return text
}

// splitGluedQuantity turns "1110.0 110.0" into "1 110.0 110.0": a leading digit
// glued to a unit price that the next token repeats is a quantity.
func splitGluedQuantity(text string) string {
	var b strings.Builder
	last := 0
	for _, m := range gluedQtyUnitRe.FindAllStringSubmatchIndex(text, -1) {
		unit := text[m[4]:m[5]]
		if !repeatsNext(text[m[1]:], unit) {
			continue
		}
		b.WriteString(text[last:m[3]])
		b.WriteString(" ")
		b.WriteString(unit)
		last = m[1]
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func repeatsNext(rest, token string) bool {
	trimmed := strings.TrimLeft(rest, " \t")
	if len(trimmed) == len(rest) || !strings.HasPrefix(trimmed, token) {
		return false
	}
	after := trimmed[len(token):]
	return after == "" || !isWordByte(after[0])
}

func isWordByte(b byte) bool {
	return isDigit(b) || b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ShouldSkipLine reports lines that can never be an item row. Header and footer
// chatter is only filtered outside an item table.
func ShouldSkipLine(text string, inTable bool) bool {
	if containsAny(strings.ToLower(text), HardSkipTerms) {
		return true
	}
	if !inTable && nonItemRe.MatchString(text) {
		return true
	}
	return strings.HasPrefix(text, "#")
}

func IsTableHeader(text string) bool { return tableHeaderRe.MatchString(text) }

func IsTableEnd(text string) bool { return tableEndRe.MatchString(text) }

// IsNonMenuName reports names of summary rows (totals, taxes, discounts).
func IsNonMenuName(name string) bool { return nonMenuRe.MatchString(name) }

// InferQuantity reads an explicit quantity marker, a multiplier, or the first
// small whole number on the line that is not one of its amounts. Defaults to 1.
func InferQuantity(text string, money []float64) float64 {
	for _, re := range []*regexp.Regexp{qtyMarkerRe, multiplierRe, trailingTimesRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v
			}
		}
	}
	for _, tok := range standaloneNumRe.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || isMoneyValue(v, money) {
			continue
		}
		if v > 0 && v <= 20 && v == math.Trunc(v) {
			return v
		}
	}
	return 1
}

func isMoneyValue(v float64, money []float64) bool {
	for _, m := range money {
		if math.Abs(v-m) < 0.001 {
			return true
		}
	}
	return false
}

// CleanName strips quantity markers, amounts and stray symbols from an item fragment.
func CleanName(text string) string {
	text = qtyMarkerRe.ReplaceAllString(text, " ")
	text = multiplierRe.ReplaceAllString(text, " ")
	text = trailingTimesRe.ReplaceAllString(text, " ")
	text = amountInNameRe.ReplaceAllString(text, " ")
	text = nameJunkRe.ReplaceAllString(text, " ")
	return strings.Trim(CollapseSpaces(text), " -:")
}

// ItemNameKey is the comparison key used when merging item lists.
func ItemNameKey(name string) string {
	return CollapseSpaces(nameKeyJunkRe.ReplaceAllString(strings.ToLower(name), " "))
}

package itemparser

import (
	"regexp"
	"strings"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/utils"
)

const (
	MaxReviewEntries         = 20
	suspiciousQuantity       = 12
	suspiciousUnitPriceBelow = 15
)

var (
	hasAmountRe = regexp.MustCompile(`\d+\.\d{1,2}`)
	hasLetterRe = regexp.MustCompile(`[A-Za-z]`)
)

// BuildNeedsReview lists lines that look like priced rows but produced no
// item, then items with an implausible quantity for their price.
func BuildNeedsReview(lines []string, items []dto.ParsedItem) []dto.NeedsReviewEntry {
	names := itemNames(items)
	var out []dto.NeedsReviewEntry

	for _, raw := range lines {
		raw = strings.TrimSpace(raw)
		text := utils.NormalizeLineText(raw)
		if text == "" || !hasAmountRe.MatchString(text) || !hasLetterRe.MatchString(text) {
			continue
		}
		if utils.ShouldSkipLine(text, true) || mentionsAny(strings.ToLower(text), names) {
			continue
		}
		out = append(out, dto.NeedsReviewEntry{Line: raw, Reason: dto.ReasonUnparsedLine})
	}

	for _, it := range items {
		if it.Quantity > suspiciousQuantity && it.UnitPrice < suspiciousUnitPriceBelow {
			out = append(out, dto.NeedsReviewEntry{Line: it.Name, Reason: dto.ReasonSuspiciousQuantity})
		}
	}

	if len(out) > MaxReviewEntries {
		out = out[:MaxReviewEntries]
	}
	return out
}

func mentionsAny(text string, names []string) bool {
	for _, n := range names {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

package service

import (
	"fmt"
	"math"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/utils"
)

const (
	baseQuality        = 0.75
	manyItemsBonus     = 0.10
	longReceiptBonus   = 0.05
	reviewPenalty      = 0.06
	maxReviewPenalty   = 0.45
	fallbackScoreBelow = 0.52
	minPrimaryItems    = 2
	minReviewAllowance = 3
)

// QualityScore rates how far an item list can be trusted, in [0, 1]. More
// review entries never raise the score.
func QualityScore(items []dto.ParsedItem, review []dto.NeedsReviewEntry) float64 {
	if len(items) == 0 {
		return 0
	}
	score := baseQuality
	if len(items) >= 3 {
		score += manyItemsBonus
	}
	if len(items) >= 6 {
		score += longReceiptBonus
	}
	score -= math.Min(maxReviewPenalty, reviewPenalty*float64(len(review)))
	return math.Max(0, math.Min(1, score))
}

// ShouldFallback reports whether the primary result is weak enough to ask the
// secondary source.
func ShouldFallback(items []dto.ParsedItem, review []dto.NeedsReviewEntry, score float64, force bool) bool {
	return force ||
		len(items) < minPrimaryItems ||
		score < fallbackScoreBelow ||
		len(review) > max(minReviewAllowance, len(items))
}

// Arbitration is the outcome of weighing a secondary result against the primary one.
type Arbitration struct {
	Items        []dto.ParsedItem
	NeedsReview  []dto.NeedsReviewEntry
	Source       string
	QualityScore float64
	Merged       int
}

// Arbitrate picks between the primary result and a secondary one. The
// secondary replaces the primary when it scores at least as well; otherwise
// its items not already present are merged in.
func Arbitrate(items []dto.ParsedItem, review []dto.NeedsReviewEntry, score float64, secondary *dto.SecondaryResult) Arbitration {
	out := Arbitration{Items: items, NeedsReview: review, Source: dto.SourcePrimary, QualityScore: score}
	if secondary == nil || len(secondary.Items) == 0 {
		return out
	}

	secondaryScore := QualityScore(secondary.Items, secondary.NeedsReview)
	if secondaryScore >= score {
		out.Items = secondary.Items
		out.NeedsReview = secondary.NeedsReview
		out.Source = dto.SourceSecondary
		out.QualityScore = secondaryScore
		return out
	}

	merged := MergeUniqueItems(items, secondary.Items)
	if added := len(merged) - len(items); added > 0 {
		out.Items = merged
		out.Merged = added
		out.Source = dto.SourceMerged
		out.QualityScore = QualityScore(merged, review)
	}
	return out
}

// MergeUniqueItems appends extra items whose name key is not already present.
// Summary rows and items without a usable quantity or cost are skipped, and
// the result is renumbered.
func MergeUniqueItems(base, extra []dto.ParsedItem) []dto.ParsedItem {
	merged := make([]dto.ParsedItem, 0, len(base)+len(extra))
	merged = append(merged, base...)
	seen := make(map[string]bool, len(base))
	for _, it := range base {
		seen[utils.ItemNameKey(it.Name)] = true
	}

	added := false
	for _, it := range extra {
		key := utils.ItemNameKey(it.Name)
		if len(it.Name) < 2 || key == "" || seen[key] || utils.IsNonMenuName(it.Name) {
			continue
		}
		if it.Quantity <= 0 || it.Cost <= 0 {
			continue
		}
		if it.UnitPrice <= 0 {
			it.UnitPrice = utils.Round2(it.Cost / it.Quantity)
		}
		merged = append(merged, it)
		seen[key] = true
		added = true
	}

	if added {
		for i := range merged {
			merged[i].ID = utils.ItemID(i + 1)
		}
	}
	return merged
}

// Reconcile compares the summed item cost against the detected receipt
// figures and returns advisory review entries.
func Reconcile(computed float64, totals dto.ReceiptTotals) []dto.NeedsReviewEntry {
	var out []dto.NeedsReviewEntry
	sub, grand := totals.DetectedSubtotal, totals.DetectedGrandTotal

	switch {
	case sub != nil:
		if math.Abs(computed-*sub) > math.Max(2, 0.02*math.Max(1, *sub)) {
			out = append(out, dto.NeedsReviewEntry{
				Line:   fmt.Sprintf("Subtotal mismatch: parsed=%.2f, detected=%.2f", computed, *sub),
				Reason: dto.ReasonSubtotalMismatch,
			})
		}
	case grand != nil && computed > *grand+1:
		out = append(out, dto.NeedsReviewEntry{
			Line:   fmt.Sprintf("Parsed subtotal exceeds grand total: parsed=%.2f, grand=%.2f", computed, *grand),
			Reason: dto.ReasonTotalSanityFailed,
		})
	}

	if sub != nil && grand != nil && *grand < *sub-1 {
		out = append(out, dto.NeedsReviewEntry{
			Line:   fmt.Sprintf("Grand total below subtotal: grand=%.2f, subtotal=%.2f", *grand, *sub),
			Reason: dto.ReasonGrandBelowSubtotal,
		})
	}
	return out
}

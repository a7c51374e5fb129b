package service

import (
	"math"
	"sort"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/utils"
)

// centEpsilon absorbs float noise before flooring a raw cent share.
const centEpsilon = 1e-9

// CalculateSettlement splits a lobby bill between participants. Each
// participant pays for the quantities they claimed, plus a share of the
// receipt-level extra charges proportional to that base amount. Extra shares
// are allocated in whole cents by largest remainder, so they never sum to
// more than the extra charges.
//
// The calculation is read-only; callers pass a consistent snapshot.
func CalculateSettlement(items []dto.ParsedItem, claims dto.Claims, totals dto.ReceiptTotals, participants []dto.Participant) dto.SettlementSummary {
	shares := make([]dto.ParticipantShare, len(participants))
	index := make(map[string]int, len(participants))
	for i, p := range participants {
		shares[i] = dto.ParticipantShare{UserID: p.ID, UserName: p.Name, Items: []dto.ClaimedLine{}}
		index[p.ID] = i
	}

	var unclaimedItems, computedSubtotal, manualTotal float64
	for _, it := range items {
		unitCost := it.Cost
		if it.Quantity > 0 {
			unitCost = it.Cost / it.Quantity
		}

		var claimedQty float64
		for _, uid := range sortedClaimants(claims[it.ID], index) {
			qty := claims[it.ID][uid]
			claimedQty += qty
			i, ok := index[uid]
			if !ok {
				continue
			}
			amount := utils.Round2(unitCost * qty)
			shares[i].BaseTotal = utils.Round2(shares[i].BaseTotal + amount)
			shares[i].Items = append(shares[i].Items, dto.ClaimedLine{ItemID: it.ID, Name: it.Name, Quantity: qty, Amount: amount})
		}
		remaining := math.Max(0, it.Quantity-claimedQty)
		unclaimedItems = utils.Round2(unclaimedItems + unitCost*remaining)

		computedSubtotal += it.Cost
		if it.CategorySource == dto.CategorySourceUserSelected {
			manualTotal += it.Cost
		}
	}
	computedSubtotal = utils.Round2(computedSubtotal)
	manualTotal = utils.Round2(manualTotal)

	// Receipt figures win; manual additions are not on the receipt.
	itemSubtotal := computedSubtotal
	if totals.DetectedSubtotal != nil {
		itemSubtotal = utils.Round2(*totals.DetectedSubtotal + manualTotal)
	}
	grandTotal := itemSubtotal
	if totals.DetectedGrandTotal != nil {
		grandTotal = utils.Round2(*totals.DetectedGrandTotal + manualTotal)
	}
	extra := math.Max(0, utils.Round2(grandTotal-itemSubtotal))

	bases := make([]float64, len(shares))
	var claimedBase float64
	for i, s := range shares {
		bases[i] = s.BaseTotal
		claimedBase += s.BaseTotal
	}
	claimedBase = utils.Round2(claimedBase)

	extraCents := DistributeCents(utils.ToCents(extra), bases, itemSubtotal)
	var claimedTotal float64
	for i := range shares {
		shares[i].ExtraShare = utils.FromCents(extraCents[i])
		shares[i].Total = utils.Round2(shares[i].BaseTotal + shares[i].ExtraShare)
		claimedTotal += shares[i].Total
	}
	claimedTotal = utils.Round2(claimedTotal)

	progressBase := itemSubtotal
	if progressBase <= 0 {
		progressBase = grandTotal
	}
	var progress float64
	if progressBase > 0 {
		progress = utils.Round2(math.Min(100, claimedBase/progressBase*100))
	}

	breakdown := totals.DetectedTaxBreakdown
	if breakdown == nil {
		breakdown = []dto.TaxLine{}
	}
	receipt := totals

	return dto.SettlementSummary{
		ParticipantCount:   len(participants),
		ItemSubtotal:       itemSubtotal,
		ExtraCharges:       extra,
		GrandTotal:         grandTotal,
		ClaimedTotal:       claimedTotal,
		ClaimedBaseTotal:   claimedBase,
		UnclaimedTotal:     utils.Round2(math.Max(0, grandTotal-claimedTotal)),
		ClaimProgressPct:   progress,
		UnclaimedItemTotal: unclaimedItems,
		TaxBreakdown:       breakdown,
		ReceiptTotals:      &receipt,
		Users:              shares,
	}
}

// DistributeCents splits extraCents across weights in proportion to
// weight/subtotal. Floors are handed out first; the cents left over go one at
// a time to the largest fractional remainders, ties keeping weight order. The
// result sums to the rounded sum of the raw shares, which is extraCents when
// the weights add up to subtotal and never more than extraCents. Weights
// summing past subtotal (a detected subtotal below the item costs) are
// scaled against their own sum instead.
func DistributeCents(extraCents int64, weights []float64, subtotal float64) []int64 {
	out := make([]int64, len(weights))
	if extraCents <= 0 || subtotal <= 0 {
		return out
	}

	var weightSum float64
	for _, w := range weights {
		weightSum += math.Max(0, w)
	}
	denom := max(subtotal, weightSum)

	fractions := make([]float64, len(weights))
	var rawSum float64
	var floorSum int64
	for i, w := range weights {
		raw := float64(extraCents) * math.Max(0, w) / denom
		floor := math.Floor(raw + centEpsilon)
		out[i] = int64(floor)
		fractions[i] = raw - floor
		rawSum += raw
		floorSum += out[i]
	}

	target := min(extraCents, int64(math.Round(rawSum)))
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return fractions[order[a]] > fractions[order[b]] })
	for k := int64(0); k < target-floorSum && int(k) < len(order); k++ {
		out[order[k]]++
	}
	return out
}

// sortedClaimants lists the claimants of one item in participant order, with
// unknown claimants last.
func sortedClaimants(byUser map[string]float64, index map[string]int) []string {
	ids := make([]string, 0, len(byUser))
	for uid := range byUser {
		ids = append(ids, uid)
	}
	sort.Slice(ids, func(a, b int) bool {
		ia, oka := index[ids[a]]
		ib, okb := index[ids[b]]
		switch {
		case oka && okb:
			return ia < ib
		case oka != okb:
			return oka
		}
		return ids[a] < ids[b]
	})
	return ids
}

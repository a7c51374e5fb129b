// Package totals finds subtotal, tax, service charge, round-off and grand total
// figures in receipt lines.
package totals

import (
	"regexp"
	"strings"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/utils"
)

// bottomWindow is how many trailing lines the grand-total waterfall looks at.
const bottomWindow = 8

var gstinRe = regexp.MustCompile(`\bgst\s*[:#-]?\s*[a-z0-9]{10,}\b`)

var (
	subtotalKeys = []string{"sub total", "subtotal", "item total", "total items", "bill total", "total amount"}
	grandKeys    = []string{
		"grand total", "gr.total", "gr total", "gross amount", "bill amount", "net amount",
		"net to pay", "amount payable", "amount due", "pay amount", "payable amount", "total payable",
	}
	roundOffKeys = []string{"round off", "r. off", "roundof"}
	taxKeys      = []string{"sgst", "cgst", "gst", "vat", "service tax", "tax", "cess"}
	taxIDKeys    = []string{"tax id", "gstin", "tin"}
	// Footer declarations of rates that were already charged above.
	taxFooterKeys = []string{"vat on food", "vat on beverages", " paid"}
	serviceKeys   = []string{"service charge", "service tax"}
	totalLikeKeys = []string{"total", "payable", "amount"}
)

type lineKind int

const (
	kindOther lineKind = iota
	kindSubtotal
	kindGrandTotal
	kindRoundOff
	kindTax
	kindServiceCharge
)

// classify puts a lower-cased line into at most one keyword family. Families
// are checked in priority order.
func classify(lower string) lineKind {
	switch {
	case hasAny(lower, subtotalKeys):
		return kindSubtotal
	case hasAny(lower, grandKeys):
		return kindGrandTotal
	case hasAny(lower, roundOffKeys):
		return kindRoundOff
	case hasAny(lower, taxKeys):
		return kindTax
	case strings.Contains(lower, "service charge"):
		return kindServiceCharge
	}
	return kindOther
}

type candidate struct {
	index  int
	amount float64
}

// detector accumulates figures over one pass of the lines.
type detector struct {
	subtotal   *float64
	grandTotal *float64
	taxTotal   float64
	service    float64
	roundOff   float64
	breakdown  []dto.TaxLine
	totalLike  []candidate
}

// Detect scans raw line texts and returns the receipt's summary figures.
// It is a pure function of its input.
func Detect(lines []string) dto.ReceiptTotals {
	d := &detector{}
	for i, line := range lines {
		d.scan(i, line)
	}
	d.waterfall(len(lines))
	return d.result()
}

func (d *detector) scan(index int, line string) {
	lower := strings.ToLower(line)

	amount, hasAmount := utils.ParseTrailingAmount(line)
	if !hasAmount {
		if values := utils.ParseMoneyValues(line); len(values) > 0 {
			amount, hasAmount = values[len(values)-1], true
		}
	}

	if hasAmount && hasAny(lower, totalLikeKeys) && !gstinRe.MatchString(lower) &&
		!strings.Contains(lower, "total quantity") {
		d.totalLike = append(d.totalLike, candidate{index: index, amount: amount})
	}

	if !hasAmount && !strings.Contains(lower, "round") {
		return
	}

	switch classify(lower) {
	case kindSubtotal:
		if hasAmount {
			d.subtotal = dto.F64(amount)
		}
	case kindGrandTotal:
		if hasAmount {
			d.grandTotal = dto.F64(amount)
		}
	case kindRoundOff:
		if signed, ok := utils.ParseLastSignedAmount(line); ok {
			d.roundOff += signed
		}
	case kindTax:
		d.addTax(line, lower)
	case kindServiceCharge:
		if hasAmount {
			d.service += amount
			d.breakdown = append(d.breakdown, taxLine(line, amount))
		}
	}
}

// addTax records a tax row. Registration numbers and rate declarations
// without a trailing amount are ignored.
func (d *detector) addTax(line, lower string) {
	if hasAny(lower, taxIDKeys) || gstinRe.MatchString(lower) || hasAny(lower, taxFooterKeys) {
		return
	}
	amount, ok := utils.ParseTrailingAmount(line)
	if !ok {
		return
	}
	d.taxTotal += amount
	d.breakdown = append(d.breakdown, taxLine(line, amount))
	if hasAny(lower, serviceKeys) {
		d.service += amount
	}
}

// waterfall fills a missing grand total, first from the largest total-like
// amount near the bottom, then from the detected components.
func (d *detector) waterfall(lineCount int) {
	if d.grandTotal == nil && len(d.totalLike) >= 2 {
		cutoff := max(0, lineCount-bottomWindow)
		var pool []float64
		for _, c := range d.totalLike {
			if c.index >= cutoff {
				pool = append(pool, c.amount)
			}
		}
		if len(pool) == 0 {
			for _, c := range d.totalLike {
				pool = append(pool, c.amount)
			}
		}
		if d.subtotal != nil {
			var above []float64
			for _, p := range pool {
				if p >= *d.subtotal {
					above = append(above, p)
				}
			}
			if len(above) > 0 {
				pool = above
			}
		}
		best := pool[0]
		for _, p := range pool[1:] {
			best = max(best, p)
		}
		d.grandTotal = dto.F64(best)
	}

	// A "service tax" line counts toward both taxTotal and service, and both
	// are added here.
	if d.grandTotal == nil && d.subtotal != nil && (d.taxTotal > 0 || d.service > 0 || d.roundOff != 0) {
		d.grandTotal = dto.F64(*d.subtotal + d.taxTotal + d.service + d.roundOff)
	}
}

func (d *detector) result() dto.ReceiptTotals {
	out := dto.ReceiptTotals{DetectedTaxBreakdown: d.breakdown}
	if out.DetectedTaxBreakdown == nil {
		out.DetectedTaxBreakdown = []dto.TaxLine{}
	}
	if d.subtotal != nil {
		out.DetectedSubtotal = dto.F64(utils.Round2(*d.subtotal))
	}
	if d.grandTotal != nil {
		out.DetectedGrandTotal = dto.F64(utils.Round2(*d.grandTotal))
	}
	if d.taxTotal > 0 {
		out.DetectedTaxTotal = dto.F64(utils.Round2(d.taxTotal))
	}
	if d.service > 0 {
		out.DetectedServiceCharge = dto.F64(utils.Round2(d.service))
	}
	if r := utils.Round2(d.roundOff); r != 0 {
		out.DetectedRoundOff = dto.F64(r)
	}
	return out
}

func taxLine(line string, amount float64) dto.TaxLine {
	return dto.TaxLine{Label: utils.CollapseSpaces(line), Amount: utils.Round2(amount)}
}

func hasAny(lower string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Package itemparser reads purchase rows out of clustered receipt lines.
package itemparser

import (
	"regexp"
	"strings"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/utils"
)

var decimalTokenRe = regexp.MustCompile(`\b\d+\.\d{2}\b`)

// tableState tracks whether the cursor is inside the item table.
type tableState int

const (
	outsideTable tableState = iota
	insideTable
)

// advance moves the table state on a header or end line. consumed reports
// that the line was a boundary and carries no item.
func (s tableState) advance(text string) (next tableState, consumed, header bool) {
	switch {
	case utils.IsTableHeader(text):
		return insideTable, true, true
	case utils.IsTableEnd(text):
		return outsideTable, true, false
	}
	return s, false, false
}

type passMode int

const (
	// strictPass reads rows only inside a detected item table.
	strictPass passMode = iota
	// fallbackPass reads the whole receipt but needs two decimal amounts per row.
	fallbackPass
)

// Extract parses item rows from raw line texts. The strict pass runs first;
// the fallback pass runs only when it finds nothing. Summary rows such as
// totals and taxes are dropped from either result.
func Extract(lines []string) []dto.ParsedItem {
	if items := dropNonMenu(extractPass(lines, strictPass)); len(items) > 0 {
		return items
	}
	return dropNonMenu(extractPass(lines, fallbackPass))
}

func extractPass(lines []string, mode passMode) []dto.ParsedItem {
	var items []dto.ParsedItem
	state := outsideTable
	sawHeader := false

	for _, raw := range lines {
		text := utils.NormalizeLineText(raw)
		if text == "" {
			continue
		}

		next, consumed, header := state.advance(text)
		state = next
		sawHeader = sawHeader || header
		if consumed {
			continue
		}

		if mode == strictPass && state == outsideTable {
			continue
		}
		if utils.ShouldSkipLine(text, state == insideTable) {
			continue
		}

		if row, ok := parseStructuredRow(text); ok {
			items = append(items, row.item())
			continue
		}
		if mode == fallbackPass && len(decimalTokenRe.FindAllString(text, -1)) < 2 {
			continue
		}
		if row, ok := parseGenericRow(text); ok {
			items = append(items, row.item())
		}
	}

	if mode == strictPass && !sawHeader {
		return nil
	}
	return items
}

// parseGenericRow reads the last two amounts as unit price and cost and infers
// the quantity from markers on the line.
func parseGenericRow(text string) (rowParse, bool) {
	money := utils.ParseMoneyValues(text)
	if len(money) < 2 {
		return rowParse{}, false
	}
	cost := utils.Round2(money[len(money)-1])
	if cost < minCost {
		return rowParse{}, false
	}

	qty := utils.InferQuantity(text, money)
	if qty <= 0 {
		qty = 1
	}
	unit := utils.Round2(money[len(money)-2])
	if !reconstructs(qty, unit, cost) {
		unit = utils.Round2(cost / qty)
	}
	if qty > maxQuantity || (qty > bulkQuantity && unit < minBulkUnitPrice) {
		return rowParse{}, false
	}

	name := utils.CleanName(text)
	if len(name) < minNameLength {
		return rowParse{}, false
	}
	return rowParse{shape: "generic", name: name, quantity: qty, unitPrice: unit, cost: cost}, true
}

func (r rowParse) item() dto.ParsedItem {
	return dto.ParsedItem{Name: r.name, Quantity: r.quantity, UnitPrice: r.unitPrice, Cost: r.cost}
}

func dropNonMenu(items []dto.ParsedItem) []dto.ParsedItem {
	out := items[:0:0]
	for _, it := range items {
		if utils.IsNonMenuName(it.Name) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// itemNames returns the lower-cased item names, used to recognise lines that
// were already turned into items.
func itemNames(items []dto.ParsedItem) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		if n := strings.ToLower(it.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

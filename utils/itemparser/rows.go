package itemparser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Aashish23092/slice-receipts/utils"
)

const (
	maxQuantity       = 25
	bulkQuantity      = 15
	minBulkUnitPrice  = 10
	minCost           = 0.5
	maxGluedQuantity  = 12
	maxInferredQty    = 20
	minNameLength     = 2
	wholeQtyTolerance = 0.01
)

// Row shape fragments. The name is lazy so trailing numbers stay in the columns.
const (
	nameCol  = `^(?P<name>[A-Za-z][A-Za-z0-9 &()/+\-]{1,}?)\s+`
	qtyCol   = `(?P<qty>\d+(?:\.\d{1,3})?)`
	unitCol  = `(?P<unit>\d+(?:\.\d{1,2})?)`
	totalCol = `(?P<total>\d+(?:\.\d{1,2})?)\s*$`
)

var unitTotalRe = regexp.MustCompile(nameCol + unitCol + `\s+` + totalCol)

// rowParse is a candidate item read from one line.
type rowParse struct {
	shape     string
	name      string
	quantity  float64
	unitPrice float64
	cost      float64
}

// rowFields holds the named groups of a shape match plus the whole line.
type rowFields struct {
	line   string
	groups map[string]string
}

func (f rowFields) num(name string) float64 {
	v, _ := strconv.ParseFloat(f.groups[name], 64)
	return v
}

// rowMatcher recognises one column layout. read fills quantity and unit price
// given the row cost; returning false means the layout does not fit.
type rowMatcher struct {
	shape string
	re    *regexp.Regexp
	read  func(f rowFields, cost float64) (qty, unit float64, ok bool)
}

// rowMatchers are tried in order; the first plausible parse wins.
var rowMatchers = []rowMatcher{
	{
		shape: "qty_unit_total",
		re:    regexp.MustCompile(nameCol + qtyCol + `\s+` + unitCol + `\s+` + totalCol),
		read:  readQtyAndUnit,
	},
	{
		shape: "unit_qty_total",
		re:    regexp.MustCompile(nameCol + unitCol + `\s+` + qtyCol + `\s+` + totalCol),
		read:  readQtyAndUnit,
	},
	{
		shape: "qty_total",
		re:    regexp.MustCompile(nameCol + qtyCol + `\s*[*#xX]?\s+` + totalCol),
		read:  readQtyTotal,
	},
	{
		shape: "unit_total",
		re:    unitTotalRe,
		read:  readUnitTotal,
	},
}

func readQtyAndUnit(f rowFields, _ float64) (float64, float64, bool) {
	qty := f.num("qty")
	if qty <= 0 {
		return 0, 0, false
	}
	return wholeIfNear(qty), utils.Round2(f.num("unit")), true
}

func readQtyTotal(f rowFields, cost float64) (float64, float64, bool) {
	qty := f.num("qty")
	if qty <= 0 {
		return 0, 0, false
	}
	if qty <= maxQuantity {
		qty = wholeIfNear(qty)
		return qty, utils.Round2(cost / qty), true
	}
	// A "quantity" this large is really a unit price column.
	m := unitTotalRe.FindStringSubmatch(f.line)
	if m == nil {
		return 0, 0, false
	}
	unit := utils.Round2(rowFields{groups: namedGroups(unitTotalRe, m)}.num("unit"))
	if unit <= 0 {
		return 0, 0, false
	}
	if q, u, ok := splitGluedDigits(unit, cost); ok {
		return float64(q), u, true
	}
	return quantityFromRatio(cost, unit), unit, true
}

func readUnitTotal(f rowFields, cost float64) (float64, float64, bool) {
	unit := utils.Round2(f.num("unit"))
	if unit <= 0 {
		return 0, 0, false
	}
	if unit > cost {
		if _, u, ok := splitGluedDigits(unit, cost); ok {
			unit = u
		} else {
			unit = cost
		}
	}
	return quantityFromRatio(cost, unit), unit, true
}

// quantityFromRatio accepts cost/unit as a quantity when it is a whole number up to 20.
func quantityFromRatio(cost, unit float64) float64 {
	r := cost / unit
	if r >= 0.999 && utils.NearInteger(r, 0.06) && r <= maxInferredQty {
		return math.Round(r)
	}
	return 1
}

// splitGluedDigits reads a unit price that absorbed the quantity column, as in
// "2145.00" for 2 x 145.00. It tries a 1-digit then a 2-digit quantity prefix,
// then a prefix in front of the verbatim total. The first split that
// reconstructs the total is used.
func splitGluedDigits(glued, total float64) (int, float64, bool) {
	digits := strconv.Itoa(int(math.Round(glued)))
	if len(digits) < 3 {
		return 0, 0, false
	}
	tol := max(1, 0.01*max(1, total))

	for qtyLen := 1; qtyLen <= 2 && qtyLen < len(digits); qtyLen++ {
		qty, _ := strconv.Atoi(digits[:qtyLen])
		unit, _ := strconv.Atoi(digits[qtyLen:])
		if qty <= 0 || qty > maxGluedQuantity || unit <= 0 {
			continue
		}
		if math.Abs(float64(qty*unit)-total) <= tol {
			return qty, float64(unit), true
		}
	}

	t := int(math.Round(total))
	suffix := strconv.Itoa(t)
	if t > 0 && len(digits) > len(suffix) && strings.HasSuffix(digits, suffix) {
		qty, err := strconv.Atoi(digits[:len(digits)-len(suffix)])
		if err == nil && qty > 0 && qty <= maxGluedQuantity && math.Abs(float64(qty*t)-total) <= tol {
			return qty, float64(t), true
		}
	}
	return 0, 0, false
}

// parseStructuredRow tries each row shape against a normalised line.
func parseStructuredRow(line string) (rowParse, bool) {
	for _, rm := range rowMatchers {
		m := rm.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		f := rowFields{line: line, groups: namedGroups(rm.re, m)}
		name := utils.CleanName(f.groups["name"])
		if len(name) < minNameLength {
			continue
		}
		cost := utils.Round2(f.num("total"))
		qty, unit, ok := rm.read(f, cost)
		if !ok {
			continue
		}
		row := rowParse{shape: rm.shape, name: name, quantity: qty, unitPrice: unit, cost: cost}
		if row.plausible() {
			return row, true
		}
	}
	return rowParse{}, false
}

// plausible rejects column misreads and rows whose numbers do not add up.
func (r rowParse) plausible() bool {
	if r.cost < minCost || r.quantity > maxQuantity {
		return false
	}
	if r.quantity > bulkQuantity && r.unitPrice < minBulkUnitPrice {
		return false
	}
	return reconstructs(r.quantity, r.unitPrice, r.cost)
}

// reconstructs reports whether quantity x unit price matches cost within
// max(1, 8% of cost).
func reconstructs(qty, unit, cost float64) bool {
	return math.Abs(cost-qty*unit) <= max(1, 0.08*cost)
}

func wholeIfNear(v float64) float64 {
	if utils.NearInteger(v, wholeQtyTolerance) {
		return math.Round(v)
	}
	return v
}

func namedGroups(re *regexp.Regexp, m []string) map[string]string {
	out := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			out[name] = m[i]
		}
	}
	return out
}

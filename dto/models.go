package dto

import "strings"

// Point is one polygon corner in image pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WordBox is a single region as reported by a recognizer.
type WordBox struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Polygon    [4]Point `json:"polygon"`
}

// Word is a recognized token reduced to its centroid.
type Word struct {
	Text       string
	X          float64
	Y          float64
	Height     float64
	Confidence float64
}

// Line is a left-to-right run of words sharing a vertical band.
type Line []Word

// Text joins the words of the line with single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l))
	for _, w := range l {
		parts = append(parts, w.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

type Category string

const (
	CategoryVeg    Category = "veg"
	CategoryNonVeg Category = "non_veg"
	CategoryDrinks Category = "drinks"
	CategoryOther  Category = "other"
)

// ValidCategory reports whether c is one of the four item categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryVeg, CategoryNonVeg, CategoryDrinks, CategoryOther:
		return true
	}
	return false
}

// Category provenance tags.
const (
	CategorySourceAuto         = "auto"
	CategorySourceUserSelected = "user_selected"
	CategorySourceHostSelected = "host_selected"
	CategorySourceHostEdited   = "host_edited"
)

// ParsedItem is one purchased line of a receipt.
type ParsedItem struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Quantity             float64  `json:"quantity"`
	UnitPrice            float64  `json:"unit_price"`
	Cost                 float64  `json:"cost"`
	Category             Category `json:"category,omitempty"`
	CategoryConfidence   float64  `json:"category_confidence"`
	CategorySource       string   `json:"category_source,omitempty"`
	OtherSubcategory     string   `json:"other_subcategory,omitempty"`
	OtherCategoryOptions []string `json:"other_category_options,omitempty"`
}

// TaxLine is one tax or service-charge row found on the receipt.
type TaxLine struct {
	Label  string  `json:"name"`
	Amount float64 `json:"amount"`
}

// ReceiptTotals holds the figures printed on the receipt. Unset fields were not found.
type ReceiptTotals struct {
	DetectedSubtotal      *float64  `json:"detected_subtotal"`
	DetectedGrandTotal    *float64  `json:"detected_grand_total"`
	DetectedTaxTotal      *float64  `json:"detected_tax_total"`
	DetectedServiceCharge *float64  `json:"detected_service_charge"`
	DetectedRoundOff      *float64  `json:"detected_round_off"`
	DetectedTaxBreakdown  []TaxLine `json:"detected_tax_breakdown"`
}

// Review reasons.
const (
	ReasonUnparsedLine       = "unparsed_line"
	ReasonSuspiciousQuantity = "suspicious_quantity"
	ReasonBlankOrUnreadable  = "blank_or_unreadable"
	ReasonSubtotalMismatch   = "subtotal_mismatch"
	ReasonTotalSanityFailed  = "total_sanity_check_failed"
	ReasonGrandBelowSubtotal = "grand_total_below_subtotal"
)

type NeedsReviewEntry struct {
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// SecondaryResult is what an external extraction source returns for one image.
type SecondaryResult struct {
	Items       []ParsedItem       `json:"items"`
	NeedsReview []NeedsReviewEntry `json:"needs_review"`
}

// F64 returns a pointer to v.
func F64(v float64) *float64 {
	return &v
}

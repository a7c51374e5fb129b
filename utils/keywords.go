package utils

import (
	"regexp"
	"strings"

	"github.com/Aashish23092/slice-receipts/dto"
)

// Keyword sets used by line filtering, table detection and categorisation.
// Matching is case-insensitive; multi-word terms match as phrases.

// HardSkipTerms mark a line as a payment or summary row wherever they appear.
var HardSkipTerms = []string{
	"total", "subtotal", "tax", "vat", "gst", "cgst", "sgst", "service charge",
	"change", "cash", "visa", "mastercard", "amex", "paid", "payment", "balance",
}

// SoftRemoveTerms are stripped from a line as whole words before parsing.
var SoftRemoveTerms = []string{
	"date", "time", "ticket", "invoice", "items", "price", "tel", "phone",
	"email", "restaurant", "server", "bill no", "bill#", "receipt",
}

// NonItemTerms mark header and footer chatter outside an item table.
var NonItemTerms = []string{
	"tel", "phone", "email", "@", "www", "http", "invoice", "ticket", "table",
	"date", "time", "receipt", "thank", "delivery", "address", "no", "pm", "am",
	"phnom", "cambodia", "tin", "hrbr", "layout", "block", "cross",
}

// Table header columns: a header names an item column, then a quantity
// column, then an amount column.
var (
	HeaderNameColumns   = []string{"item", "items", "dish", "description", "name", "dty"}
	HeaderQtyColumns    = []string{"qty", "qty.", "quantity", "aty", "dty"}
	HeaderAmountColumns = []string{"total", "tot", "amt", "amount", "amnt"}
)

// TableEndTerms close an item table.
var TableEndTerms = []string{
	"total quantity", "gross total", "grand total", "gr.total", "gr. total", "grtotal",
	"gr total", "net amount", "subtotal", "total amount", "bill amount", "tax", "vat",
	"service", "discount", "round off",
}

// NonMenuTerms are summary rows that can look like items.
var NonMenuTerms = []string{
	"total", "tota", "subtotal", "sub total", "total amount", "grand total",
	"gr.total", "gr. total", "grtotal", "gr total", "gross total", "net amount",
	"amount due", "payable", "bill total", "bill amount", "bil amount", "round off",
	"service charge", "service tax", "service", "discount", "gst", "cgst", "sgst",
	"vat", "tax",
}

// CategoryRule assigns a category with a fixed confidence when any term matches.
type CategoryRule struct {
	Category   dto.Category
	Confidence float64
	Terms      []string
}

// CategoryRules are tried in order; the first match wins.
var CategoryRules = []CategoryRule{
	{dto.CategoryDrinks, 0.9, []string{
		"water", "coffee", "tea", "lassi", "juice", "soda", "cola", "coke", "sprite",
		"pepsi", "beer", "wine", "whisky", "whiskey", "rum", "vodka", "cocktail",
		"mocktail", "mojito", "panna",
	}},
	{dto.CategoryNonVeg, 0.9, []string{
		"chicken", "mutton", "lamb", "fish", "prawn", "prawns", "crab", "egg", "keema",
		"tikka", "kebab", "kabab", "biryani chicken", "biryani mutton", "seafood",
		"maas", "chx",
	}},
	{dto.CategoryVeg, 0.82, []string{
		"paneer", "veg", "vegetable", "dal", "roti", "naan", "chapati", "paratha", "idli",
		"dosa", "vada", "poori", "pulao", "rice", "mushroom", "gobi", "aloo", "chana",
		"rajma", "kofta",
	}},
}

const fallbackCategoryConfidence = 0.55

// OtherOptions is the canonical order of subcategories for uncategorised items.
var OtherOptions = []string{"starter", "main_course", "bread", "rice", "dessert", "snack", "side"}

// OtherOptionHints rank subcategories for an item name.
var OtherOptionHints = []struct {
	Option string
	Terms  []string
}{
	{"starter", []string{"roll", "soup", "tikka", "kebab", "pakora", "chilli", "manchow", "manchurian"}},
	{"main_course", []string{"curry", "masala", "gravy", "kofta", "biryani", "meal", "thali", "paneer"}},
	{"bread", []string{"naan", "roti", "chapati", "paratha", "kulcha"}},
	{"rice", []string{"rice", "pulao", "biryani", "fried rice"}},
	{"dessert", []string{"halwa", "gulab", "jamun", "ice cream", "kheer", "rabdi", "sweet"}},
	{"snack", []string{"vada", "idli", "dosa", "bhel", "poori", "chaat"}},
	{"side", []string{"water", "papad", "salad", "pickle", "curd", "raita"}},
}

// wordAlternation builds a case-insensitive `\b(?:a|b|c)\b` matcher.
func wordAlternation(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return `\b(?:` + strings.Join(quoted, "|") + `)\b`
}

func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

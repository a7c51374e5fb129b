package utils

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Aashish23092/slice-receipts/dto"
)

// Categorize assigns a food category from keyword rules.
func Categorize(name string) (dto.Category, float64) {
	lower := strings.ToLower(name)
	for _, rule := range CategoryRules {
		if containsAny(lower, rule.Terms) {
			return rule.Category, rule.Confidence
		}
	}
	return dto.CategoryOther, fallbackCategoryConfidence
}

// SuggestOtherOptions ranks the "other" subcategories for a name: hinted
// options first, then the rest in canonical order.
func SuggestOtherOptions(name string) []string {
	lower := strings.ToLower(name)
	ranked := make([]string, 0, len(OtherOptions))
	for _, h := range OtherOptionHints {
		if containsAny(lower, h.Terms) {
			ranked = append(ranked, h.Option)
		}
	}
	for _, opt := range OtherOptions {
		if !slices.Contains(ranked, opt) {
			ranked = append(ranked, opt)
		}
	}
	return ranked
}

// ValidOtherSubcategory reports whether s is one of the canonical subcategories.
func ValidOtherSubcategory(s string) bool {
	return slices.Contains(OtherOptions, s)
}

// ItemID formats the positional id of an item.
func ItemID(n int) string {
	return fmt.Sprintf("itm_%d", n)
}

// EnrichItems categorises items and gives unnamed ones positional ids.
func EnrichItems(items []dto.ParsedItem) []dto.ParsedItem {
	out := make([]dto.ParsedItem, len(items))
	for i, item := range items {
		cat, conf := Categorize(item.Name)
		if item.ID == "" {
			item.ID = ItemID(i + 1)
		}
		item.Category = cat
		item.CategoryConfidence = Round2(conf)
		item.CategorySource = dto.CategorySourceAuto
		item.OtherSubcategory = ""
		item.OtherCategoryOptions = nil
		if cat == dto.CategoryOther {
			item.OtherCategoryOptions = SuggestOtherOptions(item.Name)
		}
		out[i] = item
	}
	return out
}

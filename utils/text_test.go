package utils

import (
	"testing"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeLineText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Coke 3.003.00", "Coke 3.00 3.00"},
		{"Rice 1.002.003.00", "Rice 1.00 2.00 3.00"},
		{"Water 340.002.000", "Water 340.00 2.000"},
		{"Veg Roll 1110.0 110.0", "Veg Roll 1 110.0 110.0"},
		{"Paneer | 2 | 150.00", "Paneer 2 150.00"},
		{"Receipt   Tea 20.00", "Tea 20.00"},
		{"Dal 150.00", "Dal 150.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLineText(tt.in), tt.in)
	}
}

func TestShouldSkipLine(t *testing.T) {
	assert.True(t, ShouldSkipLine("Sub Total 450.00", true))
	assert.True(t, ShouldSkipLine("Paid by VISA", true))
	assert.True(t, ShouldSkipLine("Table 5 Covers 2", false))
	assert.False(t, ShouldSkipLine("Table 5 Covers 2", true))
	assert.True(t, ShouldSkipLine("#12 Order", true))
	assert.False(t, ShouldSkipLine("Paneer Tikka 2 300.00", false))
}

func TestTableMarkers(t *testing.T) {
	assert.True(t, IsTableHeader("Item Qty Rate Amount"))
	assert.True(t, IsTableHeader("Description Quantity Total"))
	assert.False(t, IsTableHeader("Qty Item Amount"))
	assert.True(t, IsTableEnd("Gr.Total 1797"))
	assert.True(t, IsTableEnd("Round Off 0.20"))
	assert.False(t, IsTableEnd("Butter Naan 2 80.00"))
}

func TestInferQuantity(t *testing.T) {
	line := "Qty: 3 Burger 150.00"
	assert.Equal(t, 3.0, InferQuantity(line, ParseMoneyValues(line)))

	line = "2 x Coke 80.00"
	assert.Equal(t, 2.0, InferQuantity(line, ParseMoneyValues(line)))

	line = "Coke x3 90.00"
	assert.Equal(t, 3.0, InferQuantity(line, ParseMoneyValues(line)))

	line = "Dosa 60.00 120.00"
	assert.Equal(t, 1.0, InferQuantity(line, ParseMoneyValues(line)))
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "Paneer Tikka", CleanName("2 x Paneer Tikka Rs.150.00"))
	assert.Equal(t, "Chicken", CleanName("Chicken-65 @ 250.00"))
	assert.Equal(t, "Lassi", CleanName("Lassi qty: 2"))
}

func TestItemNameKeyAndNonMenu(t *testing.T) {
	assert.Equal(t, "paneer tikka full", ItemNameKey(" Paneer-Tikka (Full) "))
	assert.True(t, IsNonMenuName("Grand Total"))
	assert.True(t, IsNonMenuName("CGST"))
	assert.False(t, IsNonMenuName("Totapuri Mango"))
}

func TestCategorize(t *testing.T) {
	cat, conf := Categorize("Mango Lassi")
	assert.Equal(t, dto.CategoryDrinks, cat)
	assert.Equal(t, 0.9, conf)

	cat, _ = Categorize("Chicken Tikka")
	assert.Equal(t, dto.CategoryNonVeg, cat)

	cat, conf = Categorize("Paneer Butter Masala")
	assert.Equal(t, dto.CategoryVeg, cat)
	assert.Equal(t, 0.82, conf)

	cat, conf = Categorize("Gulab Jamun")
	assert.Equal(t, dto.CategoryOther, cat)
	assert.Equal(t, 0.55, conf)
}

func TestSuggestOtherOptions(t *testing.T) {
	assert.Equal(t,
		[]string{"dessert", "starter", "main_course", "bread", "rice", "snack", "side"},
		SuggestOtherOptions("Gulab Jamun"))
	assert.Equal(t, OtherOptions, SuggestOtherOptions("Mystery"))
}

func TestEnrichItems(t *testing.T) {
	items := EnrichItems([]dto.ParsedItem{
		{Name: "Gulab Jamun", Quantity: 2, UnitPrice: 60, Cost: 120},
		{ID: "itm_9", Name: "Coke", Quantity: 1, UnitPrice: 40, Cost: 40},
	})

	assert.Equal(t, "itm_1", items[0].ID)
	assert.Equal(t, dto.CategoryOther, items[0].Category)
	assert.Equal(t, "dessert", items[0].OtherCategoryOptions[0])
	assert.Equal(t, "itm_9", items[1].ID)
	assert.Equal(t, dto.CategoryDrinks, items[1].Category)
	assert.Nil(t, items[1].OtherCategoryOptions)
	assert.Equal(t, dto.CategorySourceAuto, items[1].CategorySource)
}

func TestCalculateNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, CalculateNameSimilarity("Paneer Tikka", "PANEER-TIKKA"))
	assert.InDelta(t, 0.909, CalculateNameSimilarity("Butter Naan", "Butter Nan"), 0.001)
	assert.Equal(t, 0.0, CalculateNameSimilarity("", "Dal"))
}

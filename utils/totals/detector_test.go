package totals

import (
	"testing"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, p *float64) float64 {
	t.Helper()
	require.NotNil(t, p)
	return *p
}

func TestDetectTaxesAndRoundOff(t *testing.T) {
	got := Detect([]string{
		"Items 5 Bill Total : 610.00",
		"Service Tax @4.94% : 30.16",
		"*VAT @ 12.50% : 71.26",
		"**VAT @ 20.00% : 8.00",
		"R. Off: -0.42",
		"Net To Pay 719.00",
	})

	assert.Equal(t, 610.00, value(t, got.DetectedSubtotal))
	assert.Equal(t, 719.00, value(t, got.DetectedGrandTotal))
	assert.InDelta(t, 109.42, value(t, got.DetectedTaxTotal), 0.001)
	assert.Equal(t, -0.42, value(t, got.DetectedRoundOff))
	assert.Equal(t, 30.16, value(t, got.DetectedServiceCharge))
	require.Len(t, got.DetectedTaxBreakdown, 3)
	assert.Equal(t, dto.TaxLine{Label: "*VAT @ 12.50% : 71.26", Amount: 71.26}, got.DetectedTaxBreakdown[1])
}

func TestDetectAmountPayable(t *testing.T) {
	got := Detect([]string{
		"Sub Total 450.00",
		"CGST 9% 40.50",
		"SGST 9% 40.50",
		"Amount Payable 531.00",
	})

	assert.Equal(t, 450.00, value(t, got.DetectedSubtotal))
	assert.Equal(t, 81.00, value(t, got.DetectedTaxTotal))
	assert.Equal(t, 531.00, value(t, got.DetectedGrandTotal))
	assert.Nil(t, got.DetectedServiceCharge)
	assert.Nil(t, got.DetectedRoundOff)
}

func TestDetectDerivesGrandTotal(t *testing.T) {
	got := Detect([]string{
		"Bill Total 300.00",
		"GST 18% 54.00",
		"Round Off 1.00",
	})

	assert.Equal(t, 300.00, value(t, got.DetectedSubtotal))
	assert.Equal(t, 54.00, value(t, got.DetectedTaxTotal))
	assert.Equal(t, 1.00, value(t, got.DetectedRoundOff))
	assert.Equal(t, 355.00, value(t, got.DetectedGrandTotal))
}

func TestDetectIgnoresFooterDeclarations(t *testing.T) {
	got := Detect([]string{
		"Bill Total : 610.00",
		"Service Tax @4.94% : 30.16",
		"*VAT @ 12.50% : 71.26",
		"**VAT @ 20.00% : 8.00",
		"VAT ON FOOD @ 12.5%",
		"VAT ON BEVERAGES @ 20%",
		"SERVICE TAX @ 4.944% PAID",
		"Net To Pay 719.00",
	})

	assert.Equal(t, 109.42, value(t, got.DetectedTaxTotal))
	assert.Len(t, got.DetectedTaxBreakdown, 3)
}

func TestDetectServiceCharge(t *testing.T) {
	got := Detect([]string{
		"Sub Total 3750.00",
		"SERVICE CHARGE 10 % 375.00",
		"SGST 2.5% 103.13",
		"CGST 2.5% 103.13",
		"Gross Amount 4331.00",
	})

	assert.Equal(t, 3750.00, value(t, got.DetectedSubtotal))
	assert.Equal(t, 375.00, value(t, got.DetectedServiceCharge))
	assert.Equal(t, 206.26, value(t, got.DetectedTaxTotal))
	assert.Equal(t, 4331.00, value(t, got.DetectedGrandTotal))
	assert.Len(t, got.DetectedTaxBreakdown, 3)
}

func TestDetectIgnoresGSTIN(t *testing.T) {
	got := Detect([]string{
		"Sub Total (RS) : 1523.0",
		"SGST 9.00% (RS) : 137.1",
		"CGST 9.00% (RS) : 137.1",
		"Total (RS) : 1797.1",
		"GST:27AABCC1926B1Z8",
		"Gr.Total (RS) : 1797",
	})

	assert.Equal(t, 274.2, value(t, got.DetectedTaxTotal))
	assert.Len(t, got.DetectedTaxBreakdown, 2)
	assert.Equal(t, 1797.0, value(t, got.DetectedGrandTotal))
}

func TestDetectTotalAmountIsSubtotal(t *testing.T) {
	got := Detect([]string{
		"Total Amount 1315.00",
		"CGST 2.5% 32.88",
		"SGST 2.5% 32.88",
		"Bill Amount 1381.00",
	})

	assert.Equal(t, 1315.00, value(t, got.DetectedSubtotal))
	assert.Equal(t, 65.76, value(t, got.DetectedTaxTotal))
	assert.Equal(t, 1381.00, value(t, got.DetectedGrandTotal))
}

func TestDetectWaterfallPicksLargestBottomTotal(t *testing.T) {
	got := Detect([]string{
		"Sub Total : 235.00",
		"CGST 2.5% : 5.88",
		"SGST 2.5% : 5.88",
		"Total : 246.76",
		"Total : 247.00",
	})

	assert.Equal(t, 235.00, value(t, got.DetectedSubtotal))
	assert.Equal(t, 247.00, value(t, got.DetectedGrandTotal))
}

func TestDetectDerivedTotalAddsAllComponents(t *testing.T) {
	got := Detect([]string{
		"Sub Total 100.00",
		"Service Tax 5.00",
		"CGST 2.50",
	})

	assert.Equal(t, 7.50, value(t, got.DetectedTaxTotal))
	assert.Equal(t, 5.00, value(t, got.DetectedServiceCharge))
	assert.Equal(t, 112.50, value(t, got.DetectedGrandTotal))
}

func TestDetectEmpty(t *testing.T) {
	got := Detect(nil)

	assert.Nil(t, got.DetectedSubtotal)
	assert.Nil(t, got.DetectedGrandTotal)
	assert.Nil(t, got.DetectedTaxTotal)
	assert.NotNil(t, got.DetectedTaxBreakdown)
	assert.Empty(t, got.DetectedTaxBreakdown)
}

func TestDetectIsIdempotent(t *testing.T) {
	lines := []string{
		"Sub Total 450.00",
		"CGST 9% 40.50",
		"SGST 9% 40.50",
		"Round Off -0.00",
		"Amount Payable 531.00",
	}
	assert.Equal(t, Detect(lines), Detect(lines))
}

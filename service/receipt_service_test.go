package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aashish23092/slice-receipts/dto"
)

var saffronReceipt = []string{
	"Hotel Saffron",
	"Item Qty Rate Amount",
	"Paneer Tikka 2 150.00 300.00",
	"Butter Naan 3 40.00 120.00",
	"Sub Total 420.00",
	"CGST 2.5% 10.50",
	"SGST 2.5% 10.50",
	"Grand Total 441.00",
}

// fakeRecognizer lays out each line as a row of word boxes.
type fakeRecognizer struct {
	lines []string
	err   error
	calls int
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ image.Image) ([]dto.WordBox, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var boxes []dto.WordBox
	for row, line := range f.lines {
		top := float64(row*24 + 10)
		x := 10.0
		for _, word := range strings.Fields(line) {
			w := float64(len(word) * 9)
			boxes = append(boxes, dto.WordBox{
				Text:       word,
				Confidence: 0.93,
				Polygon:    [4]dto.Point{{X: x, Y: top}, {X: x + w, Y: top}, {X: x + w, Y: top + 14}, {X: x, Y: top + 14}},
			})
			x += w + 8
		}
	}
	return boxes, nil
}

type fakeSecondary struct {
	result *dto.SecondaryResult
	err    error
	block  bool
	calls  int
}

func (f *fakeSecondary) Extract(ctx context.Context, _ []byte, _ string) (*dto.SecondaryResult, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

type fakeArchive struct {
	keys []string
	err  error
}

func (f *fakeArchive) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type stubPDF struct {
	words []dto.WordBox
	img   image.Image
}

func (p stubPDF) ExtractWords([]byte) ([]dto.WordBox, error) { return p.words, nil }

func (p stubPDF) FirstImage([]byte) (image.Image, error) {
	if p.img == nil {
		return nil, dto.ErrInvalidImage
	}
	return p.img, nil
}

func pngUpload(t *testing.T) Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		img.Set(x, x, color.White)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return Upload{Data: buf.Bytes(), Filename: "bill.png", ContentType: "image/png"}
}

func newScanService(rec Recognizer, secondary SecondaryExtractor, archive ImageArchive) *ReceiptService {
	svc := NewReceiptService(rec, stubPDF{}, secondary, archive, 50*time.Millisecond)
	svc.now = func() time.Time { return time.Date(2026, 5, 2, 13, 4, 5, 0, time.UTC) }
	return svc
}

func TestScanReceiptPrimaryOnly(t *testing.T) {
	svc := newScanService(&fakeRecognizer{lines: saffronReceipt}, nil, nil)

	resp, err := svc.ScanReceipt(context.Background(), pngUpload(t), ScanOptions{UseHybrid: true})
	require.NoError(t, err)

	require.Len(t, resp.Items, 2)
	assert.Equal(t, "itm_1", resp.Items[0].ID)
	assert.Equal(t, "Paneer Tikka", resp.Items[0].Name)
	assert.Equal(t, dto.CategorySourceAuto, resp.Items[0].CategorySource)
	assert.Empty(t, resp.NeedsReview)
	assert.Equal(t, dto.SourcePrimary, resp.Source)

	assert.Equal(t, 420.0, resp.Totals.ComputedSubtotal)
	assert.Equal(t, 420.0, *resp.Totals.DetectedSubtotal)
	assert.Equal(t, 441.0, *resp.Totals.DetectedGrandTotal)
	assert.Equal(t, 21.0, *resp.Totals.DetectedTaxTotal)

	assert.False(t, resp.ConfidenceSummary.FallbackAttempted)
	assert.False(t, resp.ConfidenceSummary.SecondaryConfigured)
	assert.Equal(t, 0.75, resp.ConfidenceSummary.QualityScore)
	assert.Equal(t, "2026-05-02T13:04:05Z", resp.ProcessedAt)
	assert.Nil(t, resp.Debug)
}

func TestScanReceiptSecondaryReplacesWeakerPrimary(t *testing.T) {
	secondary := &fakeSecondary{result: &dto.SecondaryResult{Items: []dto.ParsedItem{
		{Name: "Paneer Tikka", Quantity: 2, UnitPrice: 150, Cost: 300},
		{Name: "Butter Naan", Quantity: 2, UnitPrice: 40, Cost: 80},
		{Name: "Sweet Lassi", Quantity: 1, UnitPrice: 40, Cost: 40},
	}}}
	svc := newScanService(&fakeRecognizer{lines: saffronReceipt}, secondary, nil)

	resp, err := svc.ScanReceipt(context.Background(), pngUpload(t), ScanOptions{UseHybrid: true, ForceFallback: true})
	require.NoError(t, err)

	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, dto.SourceSecondary, resp.Source)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "itm_3", resp.Items[2].ID)
	assert.Equal(t, dto.CategoryDrinks, resp.Items[2].Category)
	assert.True(t, resp.ConfidenceSummary.FallbackAttempted)
	assert.True(t, resp.ConfidenceSummary.ForceFallback)
	assert.Equal(t, 0.85, resp.ConfidenceSummary.QualityScore)
	assert.Empty(t, resp.NeedsReview)
}

func TestScanReceiptMergesMissingItems(t *testing.T) {
	secondary := &fakeSecondary{result: &dto.SecondaryResult{
		Items:       []dto.ParsedItem{{Name: "Mango Lassi", Quantity: 1, Cost: 60}},
		NeedsReview: []dto.NeedsReviewEntry{{Line: "smudged", Reason: dto.ReasonUnparsedLine}},
	}}
	svc := newScanService(&fakeRecognizer{lines: saffronReceipt}, secondary, nil)

	resp, err := svc.ScanReceipt(context.Background(), pngUpload(t), ScanOptions{UseHybrid: true, ForceFallback: true})
	require.NoError(t, err)

	assert.Equal(t, dto.SourceMerged, resp.Source)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "Mango Lassi", resp.Items[2].Name)
	assert.Equal(t, 60.0, resp.Items[2].UnitPrice)
	assert.Equal(t, 1, resp.ConfidenceSummary.MergedFromSecondary)
	assert.Equal(t, 480.0, resp.Totals.ComputedSubtotal)
	require.Len(t, resp.NeedsReview, 1)
	assert.Equal(t, dto.ReasonSubtotalMismatch, resp.NeedsReview[0].Reason)
}

func TestScanReceiptSkipsSecondaryWhenHybridOff(t *testing.T) {
	secondary := &fakeSecondary{}
	svc := newScanService(&fakeRecognizer{lines: []string{"Welcome"}}, secondary, nil)

	resp, err := svc.ScanReceipt(context.Background(), pngUpload(t), ScanOptions{})
	require.NoError(t, err)
	assert.Zero(t, secondary.calls)
	assert.True(t, resp.ConfidenceSummary.SecondaryConfigured)
	assert.False(t, resp.ConfidenceSummary.FallbackAttempted)
}

func TestScanReceiptSecondaryFailureKeepsPrimary(t *testing.T) {
	for name, secondary := range map[string]*fakeSecondary{
		"error":   {err: errors.New("quota exceeded")},
		"timeout": {block: true},
	} {
		t.Run(name, func(t *testing.T) {
			svc := newScanService(&fakeRecognizer{lines: saffronReceipt}, secondary, nil)

			resp, err := svc.ScanReceipt(context.Background(), pngUpload(t), ScanOptions{UseHybrid: true, ForceFallback: true})
			require.NoError(t, err)
			assert.Equal(t, dto.SourcePrimary, resp.Source)
			assert.Len(t, resp.Items, 2)
			assert.True(t, resp.ConfidenceSummary.FallbackAttempted)
			require.NotNil(t, resp.ConfidenceSummary.FallbackError)
		})
	}
}

func TestScanReceiptBlankImage(t *testing.T) {
	svc := newScanService(&fakeRecognizer{}, nil, nil)

	resp, err := svc.ScanReceipt(context.Background(), pngUpload(t), ScanOptions{IncludeDebug: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.NotNil(t, resp.Items)
	require.Len(t, resp.NeedsReview, 1)
	assert.Equal(t, dto.ReasonBlankOrUnreadable, resp.NeedsReview[0].Reason)
	assert.Zero(t, resp.ConfidenceSummary.QualityScore)
	require.NotNil(t, resp.Debug)
	assert.Zero(t, resp.Debug.LineCount)
}

func TestScanReceiptRejectsInvalidUpload(t *testing.T) {
	rec := &fakeRecognizer{lines: saffronReceipt}
	svc := newScanService(rec, nil, nil)

	_, err := svc.ScanReceipt(context.Background(), Upload{Data: []byte("definitely not an image")}, ScanOptions{})
	assert.ErrorIs(t, err, dto.ErrInvalidImage)
	_, err = svc.ScanReceipt(context.Background(), Upload{}, ScanOptions{})
	assert.ErrorIs(t, err, dto.ErrEmptyUpload)
	assert.Zero(t, rec.calls)
}

func TestScanReceiptRecognizerFailure(t *testing.T) {
	svc := newScanService(&fakeRecognizer{err: errors.New("engine down")}, nil, nil)
	_, err := svc.ScanReceipt(context.Background(), pngUpload(t), ScanOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, dto.ErrInvalidImage)
}

func TestScanReceiptUsesPDFTextLayer(t *testing.T) {
	rec := &fakeRecognizer{lines: saffronReceipt}
	words, err := rec.Recognize(context.Background(), nil)
	require.NoError(t, err)
	rec.calls = 0

	svc := NewReceiptService(rec, stubPDF{words: words}, nil, nil, 0)
	resp, err := svc.ScanReceipt(context.Background(), Upload{Data: []byte("%PDF-1.7 ..."), Filename: "bill.pdf"}, ScanOptions{IncludeDebug: true})
	require.NoError(t, err)

	assert.Zero(t, rec.calls)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, len(saffronReceipt), resp.Debug.LineCount)
	assert.Equal(t, "Butter Naan 3 40.00 120.00", resp.Debug.Lines[3])
}

func TestScanReceiptArchivesUpload(t *testing.T) {
	archive := &fakeArchive{}
	svc := newScanService(&fakeRecognizer{lines: saffronReceipt}, nil, archive)

	resp, err := svc.ScanReceipt(context.Background(), pngUpload(t), ScanOptions{})
	require.NoError(t, err)
	require.Len(t, archive.keys, 1)
	assert.True(t, strings.HasPrefix(archive.keys[0], "receipts/"))
	assert.True(t, strings.HasSuffix(archive.keys[0], ".png"))
	assert.Equal(t, "https://cdn.example.com/"+archive.keys[0], resp.ReceiptImageURL)

	archive.err = errors.New("bucket gone")
	resp, err = svc.ScanReceipt(context.Background(), pngUpload(t), ScanOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.ReceiptImageURL)
}

func TestReceiptLines(t *testing.T) {
	svc := newScanService(&fakeRecognizer{lines: []string{"Masala Dosa 2 x 90.00 180.00", "Net Payable 180.00"}}, nil, nil)
	lines, err := svc.Lines(context.Background(), pngUpload(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"Masala Dosa 2 x 90.00 180.00", "Net Payable 180.00"}, lines)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/utils"
	"github.com/Aashish23092/slice-receipts/utils/itemparser"
	"github.com/Aashish23092/slice-receipts/utils/linecluster"
	"github.com/Aashish23092/slice-receipts/utils/totals"
)

// Recognizer turns an image into word boxes.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]dto.WordBox, error)
}

// SecondaryExtractor reads items directly from the uploaded file.
type SecondaryExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*dto.SecondaryResult, error)
}

// ImageArchive stores uploaded receipts and returns a public URL.
type ImageArchive interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Upload is a received receipt file.
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

type ScanOptions struct {
	IncludeDebug  bool
	UseHybrid     bool
	ForceFallback bool
}

// ReceiptService runs the scan pipeline. The secondary source and the
// archive are optional.
type ReceiptService struct {
	recognizer      Recognizer
	pdfProcessor    PDFProcessor
	secondary       SecondaryExtractor
	archive         ImageArchive
	fallbackTimeout time.Duration
	now             func() time.Time
}

func NewReceiptService(recognizer Recognizer, pdfProcessor PDFProcessor, secondary SecondaryExtractor, archive ImageArchive, fallbackTimeout time.Duration) *ReceiptService {
	return &ReceiptService{
		recognizer:      recognizer,
		pdfProcessor:    pdfProcessor,
		secondary:       secondary,
		archive:         archive,
		fallbackTimeout: fallbackTimeout,
		now:             time.Now,
	}
}

// SecondaryConfigured reports whether a fallback source is wired in.
func (s *ReceiptService) SecondaryConfigured() bool {
	return s.secondary != nil
}

// ScanReceipt extracts items and totals from an uploaded receipt. Only an
// unreadable upload or a recognizer failure is returned as an error; the
// secondary source, QR and archive steps degrade silently.
func (s *ReceiptService) ScanReceipt(ctx context.Context, upload Upload, opts ScanOptions) (*dto.ScanResponse, error) {
	img, boxes, mimeType, err := s.load(ctx, upload)
	if err != nil {
		return nil, err
	}

	lines := linecluster.Texts(linecluster.Cluster(boxes))
	items := utils.EnrichItems(itemparser.Extract(lines))
	review := itemparser.BuildNeedsReview(lines, items)
	if len(boxes) == 0 {
		review = append(review, dto.NeedsReviewEntry{Line: "", Reason: dto.ReasonBlankOrUnreadable})
	}
	detected := totals.Detect(lines)

	score := QualityScore(items, review)
	summary := &dto.ConfidenceSummary{
		ForceFallback:       opts.ForceFallback,
		SecondaryConfigured: s.SecondaryConfigured(),
		FallbackTimeoutSec:  s.fallbackTimeout.Seconds(),
	}
	arb := Arbitration{Items: items, NeedsReview: review, Source: dto.SourcePrimary, QualityScore: score}

	if opts.UseHybrid && s.SecondaryConfigured() && ShouldFallback(items, review, score, opts.ForceFallback) {
		summary.FallbackAttempted = true
		secondary, err := s.extractSecondary(ctx, upload.Data, mimeType)
		if err != nil {
			slog.Warn("secondary extraction failed", "error", err)
			msg := err.Error()
			summary.FallbackError = &msg
		} else {
			arb = Arbitrate(items, review, score, secondary)
			if arb.Source != dto.SourcePrimary {
				arb.Items = utils.EnrichItems(arb.Items)
			}
		}
	}

	var computed float64
	for _, it := range arb.Items {
		computed += it.Cost
	}
	computed = utils.Round2(computed)
	finalReview := append(arb.NeedsReview, Reconcile(computed, detected)...)
	if finalReview == nil {
		finalReview = []dto.NeedsReviewEntry{}
	}
	finalItems := arb.Items
	if finalItems == nil {
		finalItems = []dto.ParsedItem{}
	}

	summary.QualityScore = utils.Round3(arb.QualityScore)
	summary.ItemCount = len(finalItems)
	summary.NeedsReviewCount = len(finalReview)
	summary.MergedFromSecondary = arb.Merged

	resp := &dto.ScanResponse{
		Items:             finalItems,
		NeedsReview:       finalReview,
		Source:            arb.Source,
		Totals:            &dto.ScanTotals{ComputedSubtotal: computed, ReceiptTotals: detected},
		ConfidenceSummary: summary,
		ProcessedAt:       s.now().UTC().Format(time.RFC3339),
	}
	if img != nil {
		if payload, ok := ReadQR(img); ok {
			resp.ReceiptQR = payload
		}
	}
	if s.archive != nil {
		resp.ReceiptImageURL = s.archiveUpload(ctx, upload, mimeType)
	}
	if opts.IncludeDebug {
		resp.Debug = &dto.ScanDebug{LineCount: len(lines), Lines: lines}
	}

	slog.Info("receipt scanned",
		"items", len(finalItems),
		"needs_review", len(finalReview),
		"source", arb.Source,
		"quality", summary.QualityScore,
	)
	return resp, nil
}

// Lines recognises an upload and returns its clustered line texts.
func (s *ReceiptService) Lines(ctx context.Context, upload Upload) ([]string, error) {
	_, boxes, _, err := s.load(ctx, upload)
	if err != nil {
		return nil, err
	}
	return linecluster.Texts(linecluster.Cluster(boxes)), nil
}

// load decodes the upload and recognises its word boxes. PDFs with a text
// layer skip recognition.
func (s *ReceiptService) load(ctx context.Context, upload Upload) (image.Image, []dto.WordBox, string, error) {
	if len(upload.Data) == 0 {
		return nil, nil, "", dto.ErrEmptyUpload
	}

	var img image.Image
	mimeType := upload.ContentType
	if IsPDF(upload.Data) {
		mimeType = "application/pdf"
		boxes, err := s.pdfProcessor.ExtractWords(upload.Data)
		if err != nil {
			slog.Warn("pdf text layer unreadable", "error", err)
		}
		if len(boxes) > 0 {
			return nil, boxes, mimeType, nil
		}
		img, err = s.pdfProcessor.FirstImage(upload.Data)
		if err != nil {
			if errors.Is(err, dto.ErrInvalidImage) {
				return nil, nil, mimeType, err
			}
			return nil, nil, mimeType, fmt.Errorf("%w: %v", dto.ErrInvalidImage, err)
		}
	} else {
		decoded, format, err := decodeImage(upload.Data)
		if err != nil {
			return nil, nil, "", err
		}
		img = decoded
		if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
			mimeType = "image/" + format
		}
	}

	boxes, err := s.recognizer.Recognize(ctx, img)
	if err != nil {
		return nil, nil, mimeType, fmt.Errorf("recognition failed: %w", err)
	}
	return img, boxes, mimeType, nil
}

func (s *ReceiptService) extractSecondary(ctx context.Context, data []byte, mimeType string) (*dto.SecondaryResult, error) {
	if s.fallbackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fallbackTimeout)
		defer cancel()
	}
	return s.secondary.Extract(ctx, data, mimeType)
}

func (s *ReceiptService) archiveUpload(ctx context.Context, upload Upload, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if ext == "" {
		ext = "." + strings.TrimPrefix(strings.TrimPrefix(mimeType, "image/"), "application/")
	}
	key := "receipts/" + uuid.NewString() + ext
	url, err := s.archive.Put(ctx, key, mimeType, upload.Data)
	if err != nil {
		slog.Warn("receipt archive failed", "key", key, "error", err)
		return ""
	}
	return url
}

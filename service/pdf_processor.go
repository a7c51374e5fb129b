package service

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Aashish23092/slice-receipts/dto"
)

// pageStride separates pages vertically so that word boxes of later pages
// always sort below earlier ones.
const pageStride = 100000

// glyphGapRatio is the horizontal gap, relative to the font size, above which
// two glyphs on a row belong to different words.
const glyphGapRatio = 0.25

type PDFProcessor interface {
	// ExtractWords reads the text layer as word boxes. It returns no boxes
	// for scanned PDFs.
	ExtractWords(pdfData []byte) ([]dto.WordBox, error)
	// FirstImage returns the first embedded image that decodes.
	FirstImage(pdfData []byte) (image.Image, error)
}

type pdfProcessor struct{}

func NewPDFProcessor() PDFProcessor {
	return &pdfProcessor{}
}

// IsPDF checks the file magic.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF"))
}

func (p *pdfProcessor) ExtractWords(pdfData []byte) ([]dto.WordBox, error) {
	r, err := pdf.NewReader(bytes.NewReader(pdfData), int64(len(pdfData)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var boxes []dto.WordBox
	for pageIndex := 1; pageIndex <= r.NumPage(); pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			slog.Warn("pdf page text unreadable", "page", pageIndex, "error", err)
			continue
		}
		for _, row := range rows {
			boxes = append(boxes, rowWords(row.Content, pageIndex)...)
		}
	}
	return boxes, nil
}

// rowWords joins the glyphs of one text row into word boxes.
func rowWords(glyphs []pdf.Text, page int) []dto.WordBox {
	sorted := make([]pdf.Text, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var (
		out     []dto.WordBox
		word    strings.Builder
		x0, x1  float64
		y, size float64
	)
	flush := func() {
		if text := strings.TrimSpace(word.String()); text != "" {
			bottom := float64(page)*pageStride - y
			top := bottom - size
			out = append(out, dto.WordBox{
				Text:       text,
				Confidence: 1,
				Polygon:    [4]dto.Point{{X: x0, Y: top}, {X: x1, Y: top}, {X: x1, Y: bottom}, {X: x0, Y: bottom}},
			})
		}
		word.Reset()
	}

	for _, g := range sorted {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		if word.Len() > 0 && g.X-x1 > glyphGapRatio*max(g.FontSize, 1) {
			flush()
		}
		if word.Len() == 0 {
			x0, y, size = g.X, g.Y, max(g.FontSize, 1)
		}
		word.WriteString(g.S)
		x1 = g.X + g.W
	}
	flush()
	return out
}

func (p *pdfProcessor) FirstImage(pdfData []byte) (image.Image, error) {
	tempDir, err := os.MkdirTemp("", "receipt-pdf-images")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pdfPath := filepath.Join(tempDir, "receipt.pdf")
	if err := os.WriteFile(pdfPath, pdfData, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write pdf data: %w", err)
	}
	outDir := filepath.Join(tempDir, "images")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}

	if err := api.ExtractImagesFile(pdfPath, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image dir: %w", err)
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			slog.Debug("skipping undecodable pdf image", "file", file.Name(), "error", err)
			continue
		}
		return img, nil
	}
	return nil, fmt.Errorf("no decodable image in pdf: %w", dto.ErrInvalidImage)
}

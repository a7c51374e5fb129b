package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/image/draw"

	"github.com/Aashish23092/slice-receipts/dto"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	maxGeminiImageSide   = 1600
	geminiJPEGQuality    = 85
)

const geminiPrompt = `You are reading a restaurant or shop receipt.
Return only JSON with this shape:
{"items":[{"name":"string","quantity":1,"unit_price":0,"cost":0}],"needs_review":[{"line":"string","reason":"string"}]}
List purchased line items only. Do not list subtotal, tax, service charge, discount, round off or total rows.
cost is the line amount; unit_price is cost divided by quantity.`

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSONRe   = regexp.MustCompile(`(?s)\{.*\}`)
)

// GeminiClient asks a Gemini model to read items straight from a receipt
// image. It is the secondary extraction source of a scan.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{},
	}
}

// WithBaseURL points the client at another endpoint.
func (g *GeminiClient) WithBaseURL(baseURL string) *GeminiClient {
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

// Extract sends one generateContent request. The deadline comes from ctx.
func (g *GeminiClient) Extract(ctx context.Context, data []byte, mimeType string) (*dto.SecondaryResult, error) {
	if g.apiKey == "" {
		return nil, dto.ErrSecondaryNotConfigured
	}

	inline, inlineType, err := prepareInline(data, mimeType)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"text": geminiPrompt},
				{"inline_data": map[string]string{
					"mime_type": inlineType,
					"data":      base64.StdEncoding.EncodeToString(inline),
				}},
			},
		}},
		"generationConfig": map[string]any{
			"temperature":      0.1,
			"responseMimeType": "application/json",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var envelope struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty candidate list", dto.ErrMalformedPayload)
	}

	var text strings.Builder
	for _, part := range envelope.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	result, err := ParseSecondaryPayload(text.String())
	if err != nil {
		return nil, err
	}
	slog.Debug("gemini extraction finished", "items", len(result.Items), "needs_review", len(result.NeedsReview))
	return result, nil
}

// ParseSecondaryPayload recovers the JSON object from model output, which may
// be wrapped in a code fence or surrounded by prose, and keeps usable items.
func ParseSecondaryPayload(text string) (*dto.SecondaryResult, error) {
	candidate := strings.TrimSpace(text)
	if m := fencedJSONRe.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	} else if !json.Valid([]byte(candidate)) {
		candidate = bareJSONRe.FindString(candidate)
	}
	if candidate == "" {
		return nil, fmt.Errorf("%w: no json object", dto.ErrMalformedPayload)
	}

	var payload struct {
		Items []struct {
			Name      string   `json:"name"`
			Quantity  *float64 `json:"quantity"`
			UnitPrice float64  `json:"unit_price"`
			Cost      float64  `json:"cost"`
		} `json:"items"`
		NeedsReview []dto.NeedsReviewEntry `json:"needs_review"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrMalformedPayload, err)
	}

	out := &dto.SecondaryResult{Items: []dto.ParsedItem{}, NeedsReview: []dto.NeedsReviewEntry{}}
	for _, it := range payload.Items {
		name := strings.TrimSpace(it.Name)
		if len(name) < 2 || it.Cost <= 0 {
			continue
		}
		qty := 1.0
		if it.Quantity != nil && *it.Quantity > 0 {
			qty = *it.Quantity
		}
		out.Items = append(out.Items, dto.ParsedItem{Name: name, Quantity: qty, UnitPrice: it.UnitPrice, Cost: it.Cost})
	}
	for _, r := range payload.NeedsReview {
		if strings.TrimSpace(r.Line) != "" || r.Reason != "" {
			out.NeedsReview = append(out.NeedsReview, r)
		}
	}
	return out, nil
}

// prepareInline sends PDFs as they are and re-encodes images as JPEG no larger
// than maxGeminiImageSide on either side.
func prepareInline(data []byte, mimeType string) ([]byte, string, error) {
	if strings.Contains(mimeType, "pdf") {
		return data, "application/pdf", nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", dto.ErrInvalidImage, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Downscale(img, maxGeminiImageSide), &jpeg.Options{Quality: geminiJPEGQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// Downscale shrinks img so its longer side is at most maxSide.
func Downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	scale := float64(maxSide) / float64(max(w, h))
	dst := image.NewRGBA(image.Rect(0, 0, max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

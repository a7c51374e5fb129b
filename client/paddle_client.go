package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Aashish23092/slice-receipts/dto"
)

// PaddleClient calls a PaddleOCR serving endpoint (ocr_system) over HTTP.
type PaddleClient struct {
	apiURL     string
	httpClient *http.Client
}

func NewPaddleClient(apiURL string) *PaddleClient {
	if apiURL == "" {
		apiURL = "http://paddleocr:8866/predict/ocr_system"
	}
	return &PaddleClient{apiURL: apiURL, httpClient: &http.Client{}}
}

type paddleRegion struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	TextRegion [][2]float64 `json:"text_region"`
}

// Recognize posts img as base64 PNG and converts the detected text regions
// into word boxes.
func (p *PaddleClient) Recognize(ctx context.Context, img image.Image) ([]dto.WordBox, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	payloadBytes, err := json.Marshal(map[string]any{
		"images": []string{base64.StdEncoding.EncodeToString(buf.Bytes())},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call PaddleOCR API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("PaddleOCR API returned status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var result struct {
		Results [][]paddleRegion `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode PaddleOCR response: %w", err)
	}

	var out []dto.WordBox
	if len(result.Results) > 0 {
		for _, r := range result.Results[0] {
			text := strings.TrimSpace(r.Text)
			if text == "" || len(r.TextRegion) < 4 {
				continue
			}
			var poly [4]dto.Point
			for i := range poly {
				poly[i] = dto.Point{X: r.TextRegion[i][0], Y: r.TextRegion[i][1]}
			}
			out = append(out, dto.WordBox{Text: text, Confidence: r.Confidence, Polygon: poly})
		}
	}

	slog.Debug("PaddleOCR recognized regions", "regions", len(out))
	return out, nil
}

package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aashish23092/slice-receipts/dto"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func geminiReply(text string) string {
	reply := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"parts": []map[string]string{{"text": text}}},
		}},
	}
	data, _ := json.Marshal(reply)
	return string(data)
}

func TestParseSecondaryPayload(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		items int
	}{
		{"plain", `{"items":[{"name":"Veg Thali","quantity":1,"unit_price":250,"cost":250}]}`, 1},
		{"fenced", "Here you go:\n```json\n{\"items\":[{\"name\":\"Veg Thali\",\"cost\":250}]}\n```", 1},
		{"prose", `The receipt shows {"items":[{"name":"Lassi","cost":60},{"name":"Tea","cost":20}]} as requested.`, 2},
		{"filtered", `{"items":[{"name":"X","cost":20},{"name":"Coffee","cost":0},{"name":"Dosa","quantity":0,"cost":90}]}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseSecondaryPayload(tt.text)
			require.NoError(t, err)
			assert.Len(t, res.Items, tt.items)
			for _, it := range res.Items {
				assert.Positive(t, it.Quantity)
			}
		})
	}

	_, err := ParseSecondaryPayload("sorry, I cannot read this image")
	assert.ErrorIs(t, err, dto.ErrMalformedPayload)
	_, err = ParseSecondaryPayload(`{"items": [ }`)
	assert.ErrorIs(t, err, dto.ErrMalformedPayload)
}

func TestGeminiExtract(t *testing.T) {
	var gotPath, gotMime string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		var body struct {
			Contents []struct {
				Parts []struct {
					InlineData *struct {
						MimeType string `json:"mime_type"`
						Data     string `json:"data"`
					} `json:"inline_data"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && len(body.Contents) > 0 && len(body.Contents[0].Parts) > 1 {
			gotMime = body.Contents[0].Parts[1].InlineData.MimeType
		}
		_, _ = io.WriteString(w, geminiReply("```json\n{\"items\":[{\"name\":\"Masala Dosa\",\"quantity\":2,\"unit_price\":90,\"cost\":180}],\"needs_review\":[{\"line\":\"smudge\",\"reason\":\"unparsed_line\"}]}\n```"))
	}))
	defer srv.Close()

	g := NewGeminiClient("k123", "gemini-1.5-flash").WithBaseURL(srv.URL + "/")
	res, err := g.Extract(context.Background(), testPNG(t, 40, 20), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "/models/gemini-1.5-flash:generateContent?key=k123", gotPath)
	assert.Equal(t, "image/jpeg", gotMime)
	require.Len(t, res.Items, 1)
	assert.Equal(t, dto.ParsedItem{Name: "Masala Dosa", Quantity: 2, UnitPrice: 90, Cost: 180}, res.Items[0])
	assert.Len(t, res.NeedsReview, 1)

	_, err = g.Extract(context.Background(), []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", gotMime)
}

func TestGeminiExtractFailures(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status == 0 {
			time.Sleep(200 * time.Millisecond)
			_, _ = io.WriteString(w, geminiReply(`{"items":[]}`))
			return
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"message":"quota"}}`)
	}))
	defer srv.Close()
	g := NewGeminiClient("k", "m").WithBaseURL(srv.URL)

	_, err := g.Extract(context.Background(), testPNG(t, 4, 4), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	status = 0
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Extract(ctx, testPNG(t, 4, 4), "image/png")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = NewGeminiClient("", "m").Extract(context.Background(), nil, "")
	assert.ErrorIs(t, err, dto.ErrSecondaryNotConfigured)
	_, err = g.Extract(context.Background(), []byte("junk"), "image/png")
	assert.ErrorIs(t, err, dto.ErrInvalidImage)
}

func TestDownscale(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 3200, 1000))
	out := Downscale(big, 1600)
	assert.Equal(t, 1600, out.Bounds().Dx())
	assert.Equal(t, 500, out.Bounds().Dy())

	small := image.NewRGBA(image.Rect(0, 0, 800, 600))
	assert.Same(t, small, Downscale(small, 1600))
}

func TestPaddleRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Images []string `json:"images"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && assert.Len(t, body.Images, 1) {
			_, err := base64.StdEncoding.DecodeString(body.Images[0])
			assert.NoError(t, err)
		}

		_, _ = io.WriteString(w, `{"results":[[
			{"text":"Paneer Tikka","confidence":0.97,"text_region":[[10,20],[120,20],[120,36],[10,36]]},
			{"text":"  ","confidence":0.5,"text_region":[[0,0],[1,0],[1,1],[0,1]]},
			{"text":"300.00","confidence":0.91,"text_region":[[300,21],[360,21],[360,37],[300,37]]}
		]]}`)
	}))
	defer srv.Close()

	boxes, err := NewPaddleClient(srv.URL).Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.Equal(t, "Paneer Tikka", boxes[0].Text)
	assert.Equal(t, dto.Point{X: 120, Y: 36}, boxes[0].Polygon[2])
	assert.Equal(t, 0.91, boxes[1].Confidence)
}

func TestPaddleRecognizeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewPaddleClient(srv.URL).Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestR2StorePut(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewR2Store(context.Background(), R2Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		Bucket:          "receipts",
		PublicBaseURL:   "https://img.example.com/",
	})
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "receipts/a1.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/receipts/a1.png", url)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/receipts/receipts/a1.png", gotPath)
	assert.True(t, strings.Contains(string(gotBody), "png-bytes"))

	_, err = NewR2Store(context.Background(), R2Config{})
	assert.Error(t, err)
}

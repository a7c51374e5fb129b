package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aashish23092/slice-receipts/client"
	"github.com/Aashish23092/slice-receipts/config"
)

func TestNewRecognizer(t *testing.T) {
	r, err := NewRecognizer(&config.Config{OCREngine: "tesseract"})
	require.NoError(t, err)
	assert.IsType(t, &client.TesseractClient{}, r)

	r, err = NewRecognizer(&config.Config{OCREngine: "paddle", PaddleAPIURL: "http://ocr.local/predict"})
	require.NoError(t, err)
	assert.IsType(t, &client.PaddleClient{}, r)

	_, err = NewRecognizer(&config.Config{OCREngine: "paddle"})
	assert.Error(t, err)

	_, err = NewRecognizer(&config.Config{OCREngine: "easyocr"})
	assert.ErrorContains(t, err, "unknown OCR engine")
}

func TestNewWiresOptionalParts(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, &config.Config{OCREngine: "tesseract", DBPath: config.InMemoryDB}, true)
	require.NoError(t, err)
	defer a.Close()
	assert.False(t, a.Receipts.SecondaryConfigured())
	assert.NotNil(t, a.Lobbies)

	a, err = New(ctx, &config.Config{OCREngine: "tesseract", GeminiAPIKey: "key", GeminiModel: "gemini-2.0-flash"}, false)
	require.NoError(t, err)
	assert.True(t, a.Receipts.SecondaryConfigured())
	assert.Nil(t, a.Lobbies)
	assert.NoError(t, a.Close())
}

func TestNewSQLiteStore(t *testing.T) {
	a, err := New(context.Background(), &config.Config{OCREngine: "tesseract", DBPath: t.TempDir() + "/slice.db"}, true)
	require.NoError(t, err)
	assert.NotNil(t, a.Lobbies)
	assert.NoError(t, a.Close())
}

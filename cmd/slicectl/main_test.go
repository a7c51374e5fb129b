package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigLayersViper(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("OCR_ENGINE", "tesseract")
	t.Setenv("GEMINI_TIMEOUT_SEC", "12")

	viper.Set("ocr.engine", "Paddle")
	viper.Set("gemini.timeout", "3s")

	cfg := loadConfig()
	assert.Equal(t, "paddle", cfg.OCREngine)
	assert.Equal(t, 3*time.Second, cfg.GeminiTimeout)
}

func TestReadUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bill.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8}, 0o600))

	upload, err := readUpload(path)
	require.NoError(t, err)
	assert.Equal(t, "bill.jpg", upload.Filename)
	assert.Equal(t, "image/jpeg", upload.ContentType)
	assert.Len(t, upload.Data, 2)

	_, err = readUpload(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorContains(t, err, "failed to read receipt")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["scan"])
	assert.True(t, names["totals"])
	assert.True(t, names["evaluate"])
}

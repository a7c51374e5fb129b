package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Aashish23092/slice-receipts/dto"
)

// maxImagePixels bounds decoded uploads.
const maxImagePixels = 60_000_000

// decodeImage decodes any registered image format. Oversized and
// unrecognised inputs are reported as dto.ErrInvalidImage.
func decodeImage(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", dto.ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxImagePixels {
		return nil, "", fmt.Errorf("%w: %dx%d", dto.ErrInvalidImage, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", dto.ErrInvalidImage, err)
	}
	return img, format, nil
}

// ReadQR decodes a QR code printed on the receipt, such as a GST e-invoice
// payload. Most receipts carry none.
func ReadQR(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		slog.Debug("qr bitmap failed", "error", err)
		return "", false
	}
	hints := map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_TRY_HARDER: true}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", false
	}
	return result.GetText(), true
}

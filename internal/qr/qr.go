// Package qr renders text as QR code images and reads it back from them.
package qr

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // регистрация декодера gif
	_ "image/jpeg" // регистрация декодера jpeg
	_ "image/png"  // регистрация декодера png
	"io"
	"os"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

var (
	// ErrNoQRCode is returned when an image holds no readable QR code
	ErrNoQRCode = errors.New("no qr code found")
	// ErrInvalidImage is returned when the input is not a supported image
	ErrInvalidImage = errors.New("invalid image")
)

// Encode returns a PNG of text at medium error correction. A non-positive
// size falls back to DefaultSize.
func Encode(text string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}

// WriteFile writes the PNG of text to path.
func WriteFile(text string, size int, path string) error {
	png, err := Encode(text, size)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o600)
}

// Decode reads a PNG, JPEG or GIF image from r and returns the text of the
// QR code it shows.
func Decode(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := zxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoQRCode, err)
	}
	return res.GetText(), nil
}

// DecodeFile decodes the QR code in the image file at path.
func DecodeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Decode(f)
}

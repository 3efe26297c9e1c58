package qrcode

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	qr "github.com/skip2/go-qrcode"
)

// ErrNoCode means the frame holds no readable QR code. Callers sampling a
// camera stream drop the frame and keep going.
var ErrNoCode = errors.New("no qr code in frame")

// RenderPNG renders a transport string as a square PNG of the given pixel
// size. Size defaults to 256.
func RenderPNG(raw string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qr.Encode(raw, qr.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr png: %w", err)
	}
	return png, nil
}

// DecodeImage runs the frame-decode step of the capture pipeline: locate and
// read a QR code in a pixel buffer, then parse its transport string. A frame
// with no locatable code yields ErrNoCode; a located code with a bad payload
// yields a DecodeError.
func DecodeImage(img image.Image) (Payload, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Payload{}, fmt.Errorf("prepare frame: %w", err)
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return Payload{}, ErrNoCode
	}
	return Decode(result.GetText())
}

package qrcode

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"qrattend/internal/student"
)

func TestRenderAndDecodeImage(t *testing.T) {
	raw, err := Encode(student.Student{
		ID: "42", Name: "A", RollNo: "R1", Department: "CS", Year: 2,
	}, time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	data, err := RenderPNG(raw, 256)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}

	p, err := DecodeImage(img)
	if err != nil {
		t.Fatalf("frame decode: %v", err)
	}
	if p.StudentID != "42" || p.RollNo != "R1" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestDecodeImageNoCode(t *testing.T) {
	blank := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			blank.Set(x, y, color.White)
		}
	}

	_, err := DecodeImage(blank)
	if err != ErrNoCode {
		t.Fatalf("expected ErrNoCode, got %v", err)
	}
}

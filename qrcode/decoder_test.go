package qrcode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
)

const lookupURL = "https://consumer.oofd.kz?i=2873910483&f=010101012345&s=3580.5&t=20240305T143000"

type stubDecoder struct {
	payloads []Payload
	err      error
}

func (s stubDecoder) Decode(image.Image) ([]Payload, error) {
	return s.payloads, s.err
}

func blankImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func encodeQR(t *testing.T, text string) image.Image {
	t.Helper()
	matrix, err := zxingqr.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 300, 300, nil)
	if err != nil {
		t.Fatalf("encode qr: %v", err)
	}
	return matrix
}

func TestFirstNoBarcode(t *testing.T) {
	_, err := First(NewZXingDecoder(), blankImage())
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestFirstEmptyDecoderResult(t *testing.T) {
	_, err := First(stubDecoder{}, blankImage())
	if !errors.Is(err, ErrNoBarcode) {
		t.Fatalf("expected ErrNoBarcode, got %v", err)
	}
}

func TestFirstTakesDecoderOrder(t *testing.T) {
	d := stubDecoder{payloads: []Payload{{Raw: []byte("first")}, {Raw: []byte("second")}}}
	payload, err := First(d, blankImage())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if payload.Text() != "first" {
		t.Fatalf("payload = %q, want %q", payload.Text(), "first")
	}
}

func TestZXingDecoderRoundTrip(t *testing.T) {
	payload, err := First(NewZXingDecoder(), encodeQR(t, lookupURL))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Text() != lookupURL {
		t.Fatalf("payload = %q, want %q", payload.Text(), lookupURL)
	}
}

func TestLoadFilePNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(1, 1, color.Black)

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(t.TempDir(), "receipt.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}

	img, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := img.Bounds().Dx(); got != 4 {
		t.Fatalf("width = %d, want 4", got)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load([]byte("definitely not an image"), ""); err == nil {
		t.Fatalf("expected error for non-image data")
	}
}

func TestIsHEICFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "heic brand", data: []byte("\x00\x00\x00\x18ftypheic\x00\x00"), want: true},
		{name: "mif1 brand", data: []byte("\x00\x00\x00\x18ftypmif1\x00\x00"), want: true},
		{name: "mp4 brand", data: []byte("\x00\x00\x00\x18ftypisom\x00\x00"), want: false},
		{name: "short", data: []byte("ftyp"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isHEICFormat(tt.data); got != tt.want {
				t.Fatalf("isHEICFormat = %v, want %v", got, tt.want)
			}
		})
	}
}

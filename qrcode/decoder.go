// Package qrcode locates QR codes on receipt photos and returns their payloads.
package qrcode

import (
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoBarcode is wrapped by DecodeError when an image holds no QR code.
var ErrNoBarcode = errors.New("no barcode found")

// DecodeError indicates that no usable barcode was found in an image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Payload is the content of one detected barcode.
type Payload struct {
	Raw []byte
}

// Text returns the payload as a string. For oofd.kz receipts this is the
// complete lookup URL.
func (p Payload) Text() string {
	return string(p.Raw)
}

// Decoder detects barcodes in an image. An image without barcodes yields an
// empty slice and a nil error.
type Decoder interface {
	Decode(img image.Image) ([]Payload, error)
}

// First returns the first payload in decoder order. Which code wins when a
// photo shows several is not defined beyond that order.
func First(d Decoder, img image.Image) (Payload, error) {
	payloads, err := d.Decode(img)
	if err != nil {
		return Payload{}, err
	}
	if len(payloads) == 0 {
		return Payload{}, &DecodeError{Err: ErrNoBarcode}
	}
	return payloads[0], nil
}

// ZXingDecoder reads QR codes with gozxing.
type ZXingDecoder struct {
	TryHarder bool
}

// NewZXingDecoder returns a decoder that spends extra effort on skewed or
// low-contrast photos.
func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{TryHarder: true}
}

// Decode implements Decoder.
func (z *ZXingDecoder) Decode(img image.Image) ([]Payload, error) {
	if img == nil {
		return nil, &DecodeError{Err: errors.New("image is nil")}
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if z.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	result, err := zxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		var notFound gozxing.NotFoundException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, &DecodeError{Err: err}
	}
	return []Payload{{Raw: []byte(result.GetText())}}, nil
}

package qrcode

import (
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// Encoder renders a payload into a PNG image.
type Encoder interface {
	Encode(payload string) ([]byte, error)
}

type PNGEncoder struct {
	Size     int
	Recovery goqrcode.RecoveryLevel
}

func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{
		Size:     DefaultSize,
		Recovery: goqrcode.Medium,
	}
}

func (e *PNGEncoder) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qr payload cannot be empty")
	}

	png, err := goqrcode.Encode(payload, e.Recovery, e.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}

// Payload is the text scanned at boarding.
func Payload(reference, ticketNumber, username string) string {
	return fmt.Sprintf("BOOKING:%s|TICKET:%s|USER:%s", reference, ticketNumber, username)
}

func Filename(reference string) string {
	return "qr_" + reference + ".png"
}

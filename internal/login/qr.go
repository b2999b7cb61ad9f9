package login

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// enrollmentQRPNG renders an otpauth URI as a QR code PNG for the MFA
// enrollment flow; web clients display it inline as a data URI, telnet
// clients fall back to the raw URI.
func enrollmentQRPNG(uri string, size int) ([]byte, error) {
	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("login: encode enrollment QR: %w", err)
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("login: scale enrollment QR: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("login: render enrollment QR: %w", err)
	}
	return buf.Bytes(), nil
}

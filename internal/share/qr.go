package share

import (
	"encoding/base64"
	"fmt"

	"rsc.io/qr"
)

// QRDataURI encodes a URL as a QR code PNG wrapped in a data URI, suitable
// for direct embedding in an <img> tag.
func QRDataURI(url string) (string, error) {
	code, err := qr.Encode(url, qr.L)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR for %q: %w", url, err)
	}
	png := code.PNG()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

package bot

import qrcode "github.com/skip2/go-qrcode"

const qrSize = 256

// EncodeQR renders content as a PNG QR code.
func EncodeQR(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, qrSize)
}

package cryptopay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "crypto-pay-api-signature"

// UpdateInvoicePaid is the only update type the provider pushes today.
const UpdateInvoicePaid = "invoice_paid"

// Update is a webhook notification.
type Update struct {
	UpdateID    int64   `json:"update_id"`
	UpdateType  string  `json:"update_type"`
	RequestDate string  `json:"request_date"`
	Payload     Invoice `json:"payload"`
}

// VerifySignature checks signature against body; the HMAC key is SHA-256 of the API token.
func VerifySignature(token string, body []byte, signature string) bool {
	if token == "" || signature == "" {
		return false
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	key := sha256.Sum256([]byte(token))
	mac := hmac.New(sha256.New, key[:])
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Sign returns the signature the provider would send for body.
func Sign(token string, body []byte) string {
	key := sha256.Sum256([]byte(token))
	mac := hmac.New(sha256.New, key[:])
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseUpdate decodes a webhook body.
func ParseUpdate(body []byte) (*Update, error) {
	var u Update
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	if u.UpdateType == "" || u.Payload.InvoiceID == 0 {
		return nil, fmt.Errorf("incomplete update")
	}
	return &u, nil
}

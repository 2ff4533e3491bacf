package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw request body.
const SignatureHeader = "X-Paystack-Signature"

// VerifySignature checks provided against HMAC-SHA512(rawBody, secret). rawBody must be
// the bytes exactly as received; re-encoded JSON will not match.
func VerifySignature(rawBody []byte, provided string, secret []byte) bool {
	provided = strings.TrimSpace(provided)
	if provided == "" || len(secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(provided))
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(rawBody, secret))
}

// Sign returns the raw HMAC-SHA512 of body.
func Sign(body, secret []byte) []byte {
	m := hmac.New(sha512.New, secret)
	m.Write(body)
	return m.Sum(nil)
}

func SignHex(body, secret []byte) string {
	return hex.EncodeToString(Sign(body, secret))
}

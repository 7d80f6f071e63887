// Package otpsecret converts raw OTP shared secrets to and from the Base32
// text used by provisioning URIs (RFC 4648, standard alphabet, '=' padding).
package otpsecret

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSecretEncoding is returned for text that is not canonical Base32.
var ErrInvalidSecretEncoding = errors.New("invalid secret encoding")

var encoding = base32.StdEncoding

// Encode returns the uppercase, padded Base32 form of secret.
func Encode(secret []byte) string {
	return encoding.EncodeToString(secret)
}

// Decode is the exact inverse of Encode. Lowercase letters, missing padding
// and non-zero trailing bits are rejected; use Normalize first for text typed
// by people or produced by lenient encoders.
func Decode(text string) ([]byte, error) {
	if strings.ContainsAny(text, "\r\n") {
		return nil, fmt.Errorf("%w: line breaks", ErrInvalidSecretEncoding)
	}
	out, err := encoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretEncoding, err)
	}
	// Non-zero trailing bits decode fine but do not encode back to text.
	if encoding.EncodeToString(out) != text {
		return nil, fmt.Errorf("%w: non-canonical trailing bits", ErrInvalidSecretEncoding)
	}
	return out, nil
}

// Normalize removes whitespace and dashes, uppercases, and restores the
// padding that many authenticators drop.
func Normalize(text string) string {
	clean := strings.ToUpper(strings.Join(strings.Fields(text), ""))
	clean = strings.ReplaceAll(clean, "-", "")
	clean = strings.TrimRight(clean, "=")
	if n := len(clean) % 8; n != 0 {
		clean += strings.Repeat("=", 8-n)
	}
	return clean
}

// Package exporturl extracts the binary migration payload from an
// authenticator export URL of the form
//
//	otpauth-migration://offline?data=<url-encoded base64>
package exporturl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Prefix starts every export URL.
const Prefix = "otpauth-migration://offline?data="

// maxUnescapeRounds bounds how many layers of nested percent-encoding are undone.
const maxUnescapeRounds = 4

var (
	// ErrUnrecognizedExportFormat is returned when the text is not an export URL.
	ErrUnrecognizedExportFormat = errors.New("unrecognized export format")
	// ErrInvalidBase64 is returned when the data parameter does not decode.
	ErrInvalidBase64 = errors.New("invalid base64 data")
)

// IsExportURL reports whether s starts with the export URL prefix.
func IsExportURL(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), Prefix)
}

// ExtractPayload returns the raw payload bytes carried by exportURL.
//
// The data value is read as-is from the URL instead of through form decoding,
// which would turn every '+' of the Base64 text into a space.
func ExtractPayload(exportURL string) ([]byte, error) {
	s := strings.TrimSpace(exportURL)
	if !strings.HasPrefix(s, Prefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrUnrecognizedExportFormat, Prefix)
	}

	data := strings.TrimPrefix(s, Prefix)
	if i := strings.IndexAny(data, "&#"); i >= 0 {
		data = data[:i]
	}
	if data == "" {
		return nil, fmt.Errorf("%w: empty data parameter", ErrUnrecognizedExportFormat)
	}

	data, err := unescape(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}

	out, err := base64.StdEncoding.DecodeString(repair(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return out, nil
}

// BuildURL returns the export URL carrying payload.
func BuildURL(payload []byte) string {
	return Prefix + url.QueryEscape(base64.StdEncoding.EncodeToString(payload))
}

// unescape undoes percent-encoding with path semantics, so a literal '+'
// survives, repeating while escapes remain from nested encoding.
func unescape(s string) (string, error) {
	for i := 0; i < maxUnescapeRounds && strings.Contains(s, "%"); i++ {
		u, err := url.PathUnescape(s)
		if err != nil {
			return "", err
		}
		s = u
	}
	return s, nil
}

// repair maps the text back onto the standard Base64 alphabet and pads it to
// a multiple of four characters.
func repair(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-':
			return '+'
		case '_':
			return '/'
		case '\n', '\r', '\t':
			return -1
		default:
			return r
		}
	}, s)
	s = strings.TrimRight(s, "=")
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	return s
}

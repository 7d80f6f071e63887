// Package otpuri builds and parses otpauth:// provisioning URIs:
//
//	otpauth://{totp|hotp}/[{issuer}:]{name}?secret=...&issuer=...&algorithm=...&digits=...&(period|counter)=...
//
// Parameters are always written in that order because some authenticator
// apps read them positionally.
package otpuri

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/package/otpsecret"
)

// Scheme of provisioning URIs.
const Scheme = "otpauth"

// ErrMalformedURI is returned when text cannot be parsed as a provisioning URI.
var ErrMalformedURI = errors.New("malformed otpauth uri")

// ToURI renders rec as a provisioning URI. Records of unknown type are
// rejected rather than guessed.
func ToURI(rec models.AccountRecord) (string, error) {
	var host string
	switch rec.OtpType {
	case models.OtpTypeTOTP:
		host = "totp"
	case models.OtpTypeHOTP:
		host = "hotp"
	case models.OtpTypeUnknown:
		return "", models.ErrUnsupportedAccountType
	default:
		return "", fmt.Errorf("%w: %d", models.ErrUnsupportedAccountType, int(rec.OtpType))
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}

	issuer := escape(rec.Issuer)
	label := escape(rec.Name)
	if rec.Issuer != "" {
		label = issuer + ":" + label
	}

	var b strings.Builder
	b.WriteString(Scheme + "://" + host + "/" + label)
	b.WriteString("?secret=" + otpsecret.Encode(rec.Secret))
	b.WriteString("&issuer=" + issuer)
	b.WriteString("&algorithm=" + strings.ToLower(rec.Algorithm.Normalize().String()))
	b.WriteString("&digits=" + strconv.Itoa(rec.Digits))
	switch rec.OtpType {
	case models.OtpTypeTOTP:
		b.WriteString("&period=" + strconv.Itoa(rec.Period))
	case models.OtpTypeHOTP:
		b.WriteString("&counter=" + strconv.FormatUint(rec.Counter, 10))
	}
	return b.String(), nil
}

// Warnings lists the non-fatal problems of rec. Digit counts outside 6..8
// encode fine but not every authenticator accepts them.
func Warnings(rec models.AccountRecord) []models.Warning {
	var out []models.Warning
	if rec.Digits < 6 || rec.Digits > 8 {
		out = append(out, models.WarningNonStandardDigits)
	}
	return out
}

// ParseURI is the inverse of ToURI. Missing algorithm, digits and period get
// their defaults; the issuer parameter wins over the label prefix.
func ParseURI(text string) (models.AccountRecord, error) {
	text = strings.TrimSpace(text)
	u, err := url.Parse(text)
	if err != nil {
		return models.AccountRecord{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return models.AccountRecord{}, fmt.Errorf("%w: scheme %q", ErrMalformedURI, u.Scheme)
	}

	rec := models.NewAccountRecord()
	rec.OtpType = models.ParseOtpType(u.Host)
	if rec.OtpType == models.OtpTypeUnknown {
		return models.AccountRecord{}, fmt.Errorf("%w: %q", models.ErrUnsupportedAccountType, u.Host)
	}

	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return models.AccountRecord{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}

	secret := q.Get("secret")
	if secret == "" {
		return models.AccountRecord{}, fmt.Errorf("%w: missing secret", ErrMalformedURI)
	}
	if rec.Secret, err = otpsecret.Decode(otpsecret.Normalize(secret)); err != nil {
		return models.AccountRecord{}, err
	}
	if len(rec.Secret) == 0 {
		return models.AccountRecord{}, models.ErrEmptySecret
	}

	labelIssuer, name, err := splitLabel(rawLabel(text), q)
	if err != nil {
		return models.AccountRecord{}, err
	}
	rec.Name = name

	rec.Issuer = labelIssuer
	if issuer := q.Get("issuer"); issuer != "" {
		rec.Issuer = issuer
	}
	if alg := q.Get("algorithm"); alg != "" {
		rec.Algorithm = models.ParseAlgorithm(alg)
	}
	if rec.Digits, err = intParam(q, "digits", models.DefaultDigits); err != nil {
		return models.AccountRecord{}, err
	}
	if rec.Period, err = intParam(q, "period", models.DefaultPeriod); err != nil {
		return models.AccountRecord{}, err
	}
	if c := q.Get("counter"); c != "" && rec.OtpType == models.OtpTypeHOTP {
		if rec.Counter, err = strconv.ParseUint(c, 10, 64); err != nil {
			return models.AccountRecord{}, fmt.Errorf("%w: counter %q", ErrMalformedURI, c)
		}
	}
	return rec, nil
}

// rawLabel returns the label exactly as written in text. url.URL re-escapes
// literal spaces, which would make them indistinguishable from %20.
func rawLabel(text string) string {
	_, rest, ok := strings.Cut(text, "://")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	_, label, _ := strings.Cut(rest, "/")
	return label
}

// splitLabel splits a raw label into issuer and name at the first literal
// colon. Some generators escape the separator too; an escaped colon only
// separates when no issuer parameter contradicts it.
func splitLabel(raw string, q url.Values) (issuer, name string, err error) {
	sep, width := strings.Index(raw, ":"), 1
	if sep < 0 {
		sep, width = strings.Index(strings.ToUpper(raw), "%3A"), 3
	}

	rawName := raw
	if sep >= 0 {
		prefix, err := url.PathUnescape(raw[:sep])
		if err != nil {
			return "", "", fmt.Errorf("%w: label %q", ErrMalformedURI, raw)
		}
		if width == 1 || !q.Has("issuer") || q.Get("issuer") == prefix {
			issuer, rawName = prefix, raw[sep+width:]
		}
		if width == 1 {
			// "Issuer: name" is common in hand-written URIs, an escaped %20 is kept
			rawName = strings.TrimLeft(rawName, " ")
		}
	}
	if name, err = url.PathUnescape(rawName); err != nil {
		return "", "", fmt.Errorf("%w: label %q", ErrMalformedURI, raw)
	}
	return issuer, name, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedURI, key, s)
	}
	if v == 0 {
		return def, nil
	}
	return v, nil
}

// escape percent-encodes s as a URI component: only A-Z a-z 0-9 - . _ ~ stay
// literal, a space becomes %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

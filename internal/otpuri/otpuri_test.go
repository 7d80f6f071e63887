package otpuri

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/package/otpsecret"
)

var helloSecret = []byte("Hello")

func totpRecord(issuer, name string) models.AccountRecord {
	rec := models.NewAccountRecord()
	rec.Issuer = issuer
	rec.Name = name
	rec.Secret = helloSecret
	rec.OtpType = models.OtpTypeTOTP
	return rec
}

func TestToURI(t *testing.T) {
	hotp := totpRecord("ACME", "bob")
	hotp.OtpType = models.OtpTypeHOTP
	hotp.Counter = 42
	hotp.Algorithm = models.AlgorithmSHA512
	hotp.Digits = 8

	tests := []struct {
		name string
		rec  models.AccountRecord
		want string
	}{
		{
			name: "totp with issuer",
			rec:  totpRecord("Example", "alice@example.com"),
			want: "otpauth://totp/Example:alice%40example.com?secret=JBSWY3DP&issuer=Example&algorithm=sha1&digits=6&period=30",
		},
		{
			name: "no issuer",
			rec:  totpRecord("", "alice"),
			want: "otpauth://totp/alice?secret=JBSWY3DP&issuer=&algorithm=sha1&digits=6&period=30",
		},
		{
			name: "hotp counter",
			rec:  hotp,
			want: "otpauth://hotp/ACME:bob?secret=JBSWY3DP&issuer=ACME&algorithm=sha512&digits=8&counter=42",
		},
		{
			name: "spaces and separators escaped",
			rec:  totpRecord("Big Co", "a:b/c+d"),
			want: "otpauth://totp/Big%20Co:a%3Ab%2Fc%2Bd?secret=JBSWY3DP&issuer=Big%20Co&algorithm=sha1&digits=6&period=30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToURI(tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToURIRejects(t *testing.T) {
	unknown := totpRecord("Example", "alice")
	unknown.OtpType = models.OtpTypeUnknown
	_, err := ToURI(unknown)
	assert.ErrorIs(t, err, models.ErrUnsupportedAccountType)

	outOfRange := totpRecord("Example", "alice")
	outOfRange.OtpType = models.OtpType(9)
	_, err = ToURI(outOfRange)
	assert.ErrorIs(t, err, models.ErrUnsupportedAccountType)

	empty := totpRecord("Example", "alice")
	empty.Secret = nil
	_, err = ToURI(empty)
	assert.ErrorIs(t, err, models.ErrEmptySecret)
}

func TestRoundTrip(t *testing.T) {
	labels := []struct{ issuer, name string }{
		{"Example", "alice@example.com"},
		{"", "alice"},
		{"", "host:port"},
		{"Big Co", "first last"},
		{"Example", "  alice"},
		{"", "  alice"},
		{"a:b", "c:d"},
		{"Üñí", "ключ"},
		{"x+y", "p/q?r#s%t"},
		{"", ""},
	}
	algorithms := []models.Algorithm{models.AlgorithmSHA1, models.AlgorithmSHA256, models.AlgorithmSHA512}
	types := []models.OtpType{models.OtpTypeTOTP, models.OtpTypeHOTP}

	for _, l := range labels {
		for _, alg := range algorithms {
			for _, typ := range types {
				for _, digits := range []int{6, 7, 8} {
					rec := totpRecord(l.issuer, l.name)
					rec.Secret = []byte{0x00, 0xff, 0x10, 0x20, 0x30, 0x40, 0x50}
					rec.Algorithm = alg
					rec.OtpType = typ
					rec.Digits = digits
					if typ == models.OtpTypeHOTP {
						rec.Counter = 7
					} else {
						rec.Period = 60
					}

					name := fmt.Sprintf("%s/%s/%s/%d", rec.Label(), alg, typ, digits)
					t.Run(name, func(t *testing.T) {
						uri, err := ToURI(rec)
						require.NoError(t, err)

						got, err := ParseURI(uri)
						require.NoError(t, err, uri)
						assert.Equal(t, rec, got, uri)
					})
				}
			}
		}
	}
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want models.AccountRecord
	}{
		{
			name: "defaults",
			uri:  "otpauth://totp/alice?secret=JBSWY3DP",
			want: totpRecord("", "alice"),
		},
		{
			name: "issuer from label",
			uri:  "otpauth://totp/Example:alice?secret=JBSWY3DP",
			want: totpRecord("Example", "alice"),
		},
		{
			name: "issuer parameter wins",
			uri:  "otpauth://totp/Old:alice?secret=JBSWY3DP&issuer=New",
			want: totpRecord("New", "alice"),
		},
		{
			name: "escaped separator",
			uri:  "otpauth://totp/Example%3Aalice?secret=JBSWY3DP&issuer=Example",
			want: totpRecord("Example", "alice"),
		},
		{
			name: "literal space after separator",
			uri:  "otpauth://totp/Example: alice?secret=JBSWY3DP",
			want: totpRecord("Example", "alice"),
		},
		{
			name: "escaped space after separator kept",
			uri:  "otpauth://totp/Example:%20alice?secret=JBSWY3DP",
			want: totpRecord("Example", " alice"),
		},
		{
			name: "literal space inside name",
			uri:  "otpauth://totp/Big Co:first last?secret=JBSWY3DP",
			want: totpRecord("Big Co", "first last"),
		},
		{
			name: "lowercase unpadded secret",
			uri:  "OTPAUTH://TOTP/alice?secret=jbswy3dp&digits=0&period=0",
			want: totpRecord("", "alice"),
		},
		{
			name: "counter ignored for totp",
			uri:  "otpauth://totp/alice?secret=JBSWY3DP&counter=5",
			want: totpRecord("", "alice"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseURIErrors(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr error
	}{
		{name: "wrong scheme", uri: "https://totp/alice?secret=JBSWY3DP", wantErr: ErrMalformedURI},
		{name: "export url", uri: "otpauth-migration://offline?data=AQ%3D%3D", wantErr: ErrMalformedURI},
		{name: "missing secret", uri: "otpauth://totp/alice?issuer=Example", wantErr: ErrMalformedURI},
		{name: "bad label escape", uri: "otpauth://totp/al%zzice?secret=JBSWY3DP", wantErr: ErrMalformedURI},
		{name: "bad digits", uri: "otpauth://totp/alice?secret=JBSWY3DP&digits=six", wantErr: ErrMalformedURI},
		{name: "negative period", uri: "otpauth://totp/alice?secret=JBSWY3DP&period=-30", wantErr: ErrMalformedURI},
		{name: "bad counter", uri: "otpauth://hotp/alice?secret=JBSWY3DP&counter=x", wantErr: ErrMalformedURI},
		{name: "unknown type", uri: "otpauth://motp/alice?secret=JBSWY3DP", wantErr: models.ErrUnsupportedAccountType},
		{name: "invalid secret", uri: "otpauth://totp/alice?secret=JBSWY3D1", wantErr: otpsecret.ErrInvalidSecretEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURI(tt.uri)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWarnings(t *testing.T) {
	for digits, want := range map[int]bool{1: true, 5: true, 6: false, 7: false, 8: false, 9: true} {
		rec := totpRecord("", "alice")
		rec.Digits = digits
		if want {
			assert.Equal(t, []models.Warning{models.WarningNonStandardDigits}, Warnings(rec), "digits %d", digits)
		} else {
			assert.Empty(t, Warnings(rec), "digits %d", digits)
		}
	}
}

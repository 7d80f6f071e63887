// Package otpcode computes the current one-time code of an account.
package otpcode

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/package/otpsecret"
)

var algorithms = map[models.Algorithm]otp.Algorithm{
	models.AlgorithmSHA1:   otp.AlgorithmSHA1,
	models.AlgorithmSHA256: otp.AlgorithmSHA256,
	models.AlgorithmSHA512: otp.AlgorithmSHA512,
}

// Generate returns the code of rec at time at. HOTP records ignore at and
// use their stored counter.
func Generate(rec models.AccountRecord, at time.Time) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	rec.ApplyDefaults()

	secret := otpsecret.Encode(rec.Secret)
	alg := algorithms[rec.Algorithm]
	digits := otp.Digits(rec.Digits)

	switch rec.OtpType {
	case models.OtpTypeTOTP:
		return totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
			Period:    uint(rec.Period),
			Digits:    digits,
			Algorithm: alg,
		})
	case models.OtpTypeHOTP:
		return hotp.GenerateCodeCustom(secret, rec.Counter, hotp.ValidateOpts{
			Digits:    digits,
			Algorithm: alg,
		})
	case models.OtpTypeUnknown:
		return "", models.ErrUnsupportedAccountType
	default:
		return "", fmt.Errorf("%w: %d", models.ErrUnsupportedAccountType, int(rec.OtpType))
	}
}

// Remaining returns how long the TOTP code generated at at stays valid.
// HOTP codes do not expire and give zero.
func Remaining(rec models.AccountRecord, at time.Time) time.Duration {
	if rec.OtpType != models.OtpTypeTOTP {
		return 0
	}
	period := rec.Period
	if period <= 0 {
		period = models.DefaultPeriod
	}
	p := time.Duration(period) * time.Second
	return p - time.Duration(at.UnixNano())%p
}

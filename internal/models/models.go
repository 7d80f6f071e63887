package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vova4o/otpexport/package/otpsecret"
)

// Defaults applied when a field is absent or zero
const (
	DefaultDigits = 6
	DefaultPeriod = 30
)

var (
	// ErrEmptySecret is returned for an account record without secret bytes
	ErrEmptySecret = errors.New("empty secret")
	// ErrUnsupportedAccountType is returned for records that are neither HOTP nor TOTP
	ErrUnsupportedAccountType = errors.New("unsupported account type")
)

// OtpType тип одноразового пароля. Values match the export enum codes.
type OtpType int

// OTP types
const (
	OtpTypeUnknown OtpType = iota
	OtpTypeHOTP
	OtpTypeTOTP
)

// String returns HOTP, TOTP or UNKNOWN
func (t OtpType) String() string {
	switch t {
	case OtpTypeHOTP:
		return "HOTP"
	case OtpTypeTOTP:
		return "TOTP"
	case OtpTypeUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

// ParseOtpType parses hotp/totp in any case
func ParseOtpType(s string) OtpType {
	switch strings.ToUpper(s) {
	case "HOTP":
		return OtpTypeHOTP
	case "TOTP":
		return OtpTypeTOTP
	default:
		return OtpTypeUnknown
	}
}

// Algorithm алгоритм HMAC. Values match the export enum codes.
type Algorithm int

// Algorithms
const (
	AlgorithmSHA1 Algorithm = iota + 1
	AlgorithmSHA256
	AlgorithmSHA512
)

// String returns SHA1, SHA256 or SHA512
func (a Algorithm) String() string {
	switch a {
	case AlgorithmSHA1:
		return "SHA1"
	case AlgorithmSHA256:
		return "SHA256"
	case AlgorithmSHA512:
		return "SHA512"
	default:
		return "SHA1"
	}
}

// Normalize maps anything unrecognized to SHA1
func (a Algorithm) Normalize() Algorithm {
	switch a {
	case AlgorithmSHA1, AlgorithmSHA256, AlgorithmSHA512:
		return a
	default:
		return AlgorithmSHA1
	}
}

// ParseAlgorithm parses an algorithm name in any case, unknown names give SHA1
func ParseAlgorithm(s string) Algorithm {
	switch strings.ToUpper(s) {
	case "SHA256":
		return AlgorithmSHA256
	case "SHA512":
		return AlgorithmSHA512
	default:
		return AlgorithmSHA1
	}
}

// AccountRecord одна учетная запись OTP
type AccountRecord struct {
	Issuer    string
	Name      string
	Secret    []byte
	OtpType   OtpType
	Algorithm Algorithm
	Digits    int
	Period    int
	Counter   uint64
}

// NewAccountRecord returns a record with the default algorithm, digits and period
func NewAccountRecord() AccountRecord {
	return AccountRecord{
		Algorithm: AlgorithmSHA1,
		Digits:    DefaultDigits,
		Period:    DefaultPeriod,
	}
}

// ApplyDefaults fills zero digits/period, normalizes the algorithm and clears
// the counter of anything but HOTP
func (r *AccountRecord) ApplyDefaults() {
	r.Algorithm = r.Algorithm.Normalize()
	if r.OtpType != OtpTypeHOTP {
		r.Counter = 0
	}
	if r.Digits == 0 {
		r.Digits = DefaultDigits
	}
	if r.Period == 0 {
		r.Period = DefaultPeriod
	}
}

// Validate checks the invariants every decoded record holds
func (r AccountRecord) Validate() error {
	if len(r.Secret) == 0 {
		return ErrEmptySecret
	}
	return nil
}

// Label returns "issuer:name", or just the name without an issuer
func (r AccountRecord) Label() string {
	if r.Issuer == "" {
		return r.Name
	}
	return r.Issuer + ":" + r.Name
}

// MigrationBatch содержит записи одного экспорта в исходном порядке
type MigrationBatch struct {
	Accounts   []AccountRecord
	Version    int
	BatchSize  int
	BatchIndex int
	BatchID    int32
}

// Warning marks a record that was encoded but may not import everywhere
type Warning int

// Warnings
const (
	WarningNonStandardDigits Warning = iota + 1
)

// String returns a stable machine-readable code
func (w Warning) String() string {
	switch w {
	case WarningNonStandardDigits:
		return "non_standard_digits"
	default:
		return fmt.Sprintf("warning_%d", int(w))
	}
}

// Entry is a decoded record together with its provisioning URI
type Entry struct {
	Record   AccountRecord
	URI      string
	Warnings []Warning
}

// EntryView is the printable form of an Entry used by the CLI and HTTP output
type EntryView struct {
	Issuer    string   `json:"issuer" yaml:"issuer"`
	Name      string   `json:"name" yaml:"name"`
	Secret    string   `json:"secret" yaml:"secret"`
	Type      string   `json:"type" yaml:"type"`
	Algorithm string   `json:"algorithm" yaml:"algorithm"`
	Digits    int      `json:"digits" yaml:"digits"`
	Period    int      `json:"period,omitempty" yaml:"period,omitempty"`
	Counter   *uint64  `json:"counter,omitempty" yaml:"counter,omitempty"`
	URI       string   `json:"uri" yaml:"uri"`
	Code      string   `json:"code,omitempty" yaml:"code,omitempty"`
	ExpiresIn int      `json:"expires_in,omitempty" yaml:"expires_in,omitempty"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// StoredAccount is an account row in the vault, the secret is sealed
type StoredAccount struct {
	ID           string
	Position     int
	Issuer       string
	Name         string
	OtpType      OtpType
	Algorithm    Algorithm
	Digits       int
	Period       int
	Counter      uint64
	SealedSecret string
	CreatedAt    time.Time
}

// MasterKey holds the master password hash and key derivation salt of a vault
type MasterKey struct {
	Hash string
	Salt string
}

// View converts the entry to its printable form
func (e Entry) View() EntryView {
	v := EntryView{
		Issuer:    e.Record.Issuer,
		Name:      e.Record.Name,
		Secret:    otpsecret.Encode(e.Record.Secret),
		Type:      e.Record.OtpType.String(),
		Algorithm: e.Record.Algorithm.String(),
		Digits:    e.Record.Digits,
		URI:       e.URI,
	}
	switch e.Record.OtpType {
	case OtpTypeHOTP:
		counter := e.Record.Counter
		v.Counter = &counter
	case OtpTypeTOTP, OtpTypeUnknown:
		v.Period = e.Record.Period
	}
	for _, w := range e.Warnings {
		v.Warnings = append(v.Warnings, w.String())
	}
	return v
}

// VaultAccount is a vault row with its secret opened
type VaultAccount struct {
	ID        string
	Position  int
	CreatedAt time.Time
	Record    AccountRecord
}

// Package payload decodes the binary migration payload carried by an
// authenticator export into account records, and encodes it back.
//
// The payload is a protobuf message with a fixed schema:
//
//	MigrationPayload {
//	  repeated OtpParameters otp_parameters = 1;
//	  int32 version = 2; int32 batch_size = 3; int32 batch_index = 4; int32 batch_id = 5;
//	}
//	OtpParameters {
//	  bytes secret = 1; string name = 2; string issuer = 3;
//	  Algorithm algorithm = 4; DigitCount digits = 5; OtpType type = 6;
//	  int32 period = 7; int64 counter = 8;
//	}
//
// Only that schema is understood. Fields with unknown numbers are skipped, so
// exports from newer app versions still decode.
//
// DigitCount codes 1 and 2 mean six and eight digits, larger values are taken
// as a literal count. Period sits at 7 and counter at 8. Google Authenticator's
// own schema has no period and puts the counter at 7, so an HOTP account from
// it comes out with its counter read as the period and a zero counter.
package payload

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/package/varint"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrUnsupportedWireType is returned for fixed-width and group wire types.
	ErrUnsupportedWireType = errors.New("unsupported wire type")
	// ErrInvalidFieldNumber is returned for field number 0 or above the protobuf maximum.
	ErrInvalidFieldNumber = errors.New("invalid field number")
	// ErrInvalidText is returned for a name or issuer that is not UTF-8.
	ErrInvalidText = errors.New("invalid UTF-8 text")
)

// MigrationPayload field numbers.
const (
	fieldOtpParameters protowire.Number = 1
	fieldVersion       protowire.Number = 2
	fieldBatchSize     protowire.Number = 3
	fieldBatchIndex    protowire.Number = 4
	fieldBatchID       protowire.Number = 5
)

// OtpParameters field numbers.
const (
	fieldSecret    protowire.Number = 1
	fieldName      protowire.Number = 2
	fieldIssuer    protowire.Number = 3
	fieldAlgorithm protowire.Number = 4
	fieldDigits    protowire.Number = 5
	fieldType      protowire.Number = 6
	fieldPeriod    protowire.Number = 7
	fieldCounter   protowire.Number = 8
)

// DigitCount enum codes. The authenticator writes these instead of the digit
// count itself; values from digitsLiteralMin up are literal counts as written
// by other exporters.
const (
	digitCountSix    = 1
	digitCountEight  = 2
	digitsLiteralMin = 3
)

// fieldDef describes one known field of a message: its name, the wire type
// it must arrive with and how its value is stored into the message T.
type fieldDef[T any] struct {
	name  string
	typ   protowire.Type
	apply func(dst *T, v uint64, b []byte) error
}

// payloadFields and accountFields are read-only after initialization.
var payloadFields = map[protowire.Number]fieldDef[models.MigrationBatch]{
	fieldOtpParameters: {"otp_parameters", protowire.BytesType, appendAccount},
	fieldVersion: {"version", protowire.VarintType, func(b *models.MigrationBatch, v uint64, _ []byte) error {
		b.Version = int(int32(v))
		return nil
	}},
	fieldBatchSize: {"batch_size", protowire.VarintType, func(b *models.MigrationBatch, v uint64, _ []byte) error {
		b.BatchSize = int(int32(v))
		return nil
	}},
	fieldBatchIndex: {"batch_index", protowire.VarintType, func(b *models.MigrationBatch, v uint64, _ []byte) error {
		b.BatchIndex = int(int32(v))
		return nil
	}},
	fieldBatchID: {"batch_id", protowire.VarintType, func(b *models.MigrationBatch, v uint64, _ []byte) error {
		b.BatchID = int32(v)
		return nil
	}},
}

var accountFields = map[protowire.Number]fieldDef[models.AccountRecord]{
	fieldSecret: {"secret", protowire.BytesType, func(r *models.AccountRecord, _ uint64, b []byte) error {
		r.Secret = append([]byte(nil), b...)
		return nil
	}},
	fieldName: {"name", protowire.BytesType, func(r *models.AccountRecord, _ uint64, b []byte) error {
		s, err := text(b)
		r.Name = s
		return err
	}},
	fieldIssuer: {"issuer", protowire.BytesType, func(r *models.AccountRecord, _ uint64, b []byte) error {
		s, err := text(b)
		r.Issuer = s
		return err
	}},
	fieldAlgorithm: {"algorithm", protowire.VarintType, func(r *models.AccountRecord, v uint64, _ []byte) error {
		r.Algorithm = algorithmFromWire(v)
		return nil
	}},
	fieldDigits: {"digits", protowire.VarintType, func(r *models.AccountRecord, v uint64, _ []byte) error {
		r.Digits = digitsFromWire(v)
		return nil
	}},
	fieldType: {"type", protowire.VarintType, func(r *models.AccountRecord, v uint64, _ []byte) error {
		r.OtpType = otpTypeFromWire(v)
		return nil
	}},
	fieldPeriod: {"period", protowire.VarintType, func(r *models.AccountRecord, v uint64, _ []byte) error {
		r.Period = clampInt(v)
		return nil
	}},
	fieldCounter: {"counter", protowire.VarintType, func(r *models.AccountRecord, v uint64, _ []byte) error {
		r.Counter = v
		return nil
	}},
}

// Decode parses a migration payload. Records keep the order in which they
// appear in buf. Any malformed input fails the whole decode.
func Decode(buf []byte) (models.MigrationBatch, error) {
	var batch models.MigrationBatch
	if err := decodeMessage(buf, payloadFields, &batch); err != nil {
		return models.MigrationBatch{}, err
	}
	return batch, nil
}

func appendAccount(batch *models.MigrationBatch, _ uint64, b []byte) error {
	var rec models.AccountRecord
	if err := decodeMessage(b, accountFields, &rec); err != nil {
		return fmt.Errorf("account %d: %w", len(batch.Accounts), err)
	}
	rec.ApplyDefaults()
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("account %d: %w", len(batch.Accounts), err)
	}
	batch.Accounts = append(batch.Accounts, rec)
	return nil
}

// decodeMessage runs the tag dispatch loop over buf. A known field number
// arriving with a different supported wire type is skipped like an unknown one.
func decodeMessage[T any](buf []byte, fields map[protowire.Number]fieldDef[T], dst *T) error {
	r := varint.NewReader(buf)
	for !r.AtEnd() {
		off := r.Pos()
		num, typ, err := r.ReadTag()
		if err != nil {
			return err
		}
		if num < uint64(protowire.MinValidNumber) || num > uint64(protowire.MaxValidNumber) {
			return fmt.Errorf("%w %d at offset %d", ErrInvalidFieldNumber, num, off)
		}
		if typ != protowire.VarintType && typ != protowire.BytesType {
			return fmt.Errorf("%w %d for field %d at offset %d", ErrUnsupportedWireType, typ, num, off)
		}

		fd, ok := fields[protowire.Number(num)]
		if !ok || fd.typ != typ {
			if err := r.Skip(typ); err != nil {
				return err
			}
			continue
		}

		var (
			v uint64
			b []byte
		)
		if typ == protowire.VarintType {
			v, err = r.ReadVarint()
		} else {
			b, err = r.ReadLengthDelimited()
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", fd.name, err)
		}
		if err := fd.apply(dst, v, b); err != nil {
			return fmt.Errorf("field %s: %w", fd.name, err)
		}
	}
	return nil
}

func text(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrInvalidText
	}
	return string(b), nil
}

func algorithmFromWire(v uint64) models.Algorithm {
	switch v {
	case uint64(models.AlgorithmSHA1), uint64(models.AlgorithmSHA256), uint64(models.AlgorithmSHA512):
		return models.Algorithm(v)
	default:
		return models.AlgorithmSHA1
	}
}

func otpTypeFromWire(v uint64) models.OtpType {
	switch v {
	case uint64(models.OtpTypeHOTP), uint64(models.OtpTypeTOTP):
		return models.OtpType(v)
	default:
		return models.OtpTypeUnknown
	}
}

// digitsFromWire maps DigitCount codes 1 → 6 and 2 → 8. Zero stays zero so
// the default applies; anything else is already a digit count.
func digitsFromWire(v uint64) int {
	switch {
	case v == digitCountSix:
		return 6
	case v == digitCountEight:
		return 8
	case v >= digitsLiteralMin:
		return clampInt(v)
	default:
		return 0
	}
}

func digitsToWire(d int) uint64 {
	switch d {
	case 6:
		return digitCountSix
	case 8:
		return digitCountEight
	default:
		if d < 0 {
			return 0
		}
		return uint64(d)
	}
}

func clampInt(v uint64) int {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}

package payload

import (
	"github.com/vova4o/otpexport/internal/models"
	"google.golang.org/protobuf/encoding/protowire"
)

// Encode serializes batch in the export wire format. Zero-valued scalars are
// omitted, as a protobuf encoder would do.
func Encode(batch models.MigrationBatch) []byte {
	var buf []byte
	for _, rec := range batch.Accounts {
		buf = protowire.AppendTag(buf, fieldOtpParameters, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodeAccount(rec))
	}
	buf = appendVarint(buf, fieldVersion, int64(batch.Version))
	buf = appendVarint(buf, fieldBatchSize, int64(batch.BatchSize))
	buf = appendVarint(buf, fieldBatchIndex, int64(batch.BatchIndex))
	buf = appendVarint(buf, fieldBatchID, int64(batch.BatchID))
	return buf
}

func encodeAccount(rec models.AccountRecord) []byte {
	var buf []byte
	buf = appendBytes(buf, fieldSecret, rec.Secret)
	buf = appendBytes(buf, fieldName, []byte(rec.Name))
	buf = appendBytes(buf, fieldIssuer, []byte(rec.Issuer))
	buf = appendVarint(buf, fieldAlgorithm, int64(rec.Algorithm))
	buf = appendUvarint(buf, fieldDigits, digitsToWire(rec.Digits))
	buf = appendVarint(buf, fieldType, int64(rec.OtpType))
	buf = appendVarint(buf, fieldPeriod, int64(rec.Period))
	buf = appendUvarint(buf, fieldCounter, rec.Counter)
	return buf
}

func appendBytes(buf []byte, num protowire.Number, b []byte) []byte {
	if len(b) == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, b)
}

// appendVarint writes signed values sign-extended to 64 bits, the int32 and
// enum encoding.
func appendVarint(buf []byte, num protowire.Number, v int64) []byte {
	return appendUvarint(buf, num, uint64(v))
}

func appendUvarint(buf []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

package codec

import (
	"errors"
	"strconv"

	"arbview/internal/schema"
)

var (
	_ error = (*DecodeError)(nil)
)

// DecodeError describes why a buffer could not be decoded.
// Kind is one of the exception.ErrDecode* sentinels and is returned by Unwrap.
type DecodeError struct {
	Kind   error
	Offset int
	Field  schema.FieldNumber
}

func newDecodeError(kind error, offset int, field schema.FieldNumber) *DecodeError {
	return &DecodeError{Kind: kind, Offset: offset, Field: field}
}

func withField(err error, field schema.FieldNumber) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Field == 0 {
		de.Field = field
	}
	return err
}

func (err *DecodeError) Error() string {
	buf := make([]byte, 0, 64)
	buf = append(buf, err.Kind.Error()...)
	buf = append(buf, " at offset "...)
	buf = strconv.AppendInt(buf, int64(err.Offset), 10)
	if err.Field != 0 {
		buf = append(buf, " (field "...)
		buf = strconv.AppendUint(buf, uint64(err.Field), 10)
		buf = append(buf, ')')
	}
	return string(buf)
}

func (err *DecodeError) Unwrap() error {
	return err.Kind
}

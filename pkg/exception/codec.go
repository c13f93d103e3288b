package exception

import "errors"

// Codec errors
var (
	ErrDecodeTruncated       = errors.New("codec: truncated buffer")
	ErrDecodeLengthOverrun   = errors.New("codec: length exceeds remaining buffer")
	ErrDecodeUnknownWireType = errors.New("codec: unknown wire type")
	ErrDecodeMalformedVarint = errors.New("codec: malformed varint")
)

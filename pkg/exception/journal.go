package exception

import "errors"

// Journal errors
var (
	ErrJournalInvalidMagic      = errors.New("journal: invalid magic")
	ErrJournalUnsupportedVer    = errors.New("journal: unsupported record version")
	ErrJournalInvalidHeaderSize = errors.New("journal: invalid header size")
	ErrJournalChecksumMismatch  = errors.New("journal: checksum mismatch")
	ErrJournalPayloadTooLarge   = errors.New("journal: payload too large")
	ErrJournalQueueFull         = errors.New("journal: queue full")
	ErrJournalClosed            = errors.New("journal: writer closed")
	ErrJournalNotStarted        = errors.New("journal: writer not started")
	ErrJournalAlreadyStarted    = errors.New("journal: writer already started")
	ErrJournalInvalidConfig     = errors.New("journal: invalid config")
	ErrJournalNilHandler        = errors.New("journal: nil handler")
)

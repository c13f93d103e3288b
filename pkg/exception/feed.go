package exception

import "errors"

// Feed errors
var (
	ErrFeedEmptyURL   = errors.New("feed: empty url")
	ErrFeedNilHandler = errors.New("feed: nil handler")
	ErrFeedClosed     = errors.New("feed: server closed")
)

package exception

import "errors"

// Config errors
var (
	ErrConfigFeedURL       = errors.New("config: feed url must start with ws:// or wss://")
	ErrConfigQueueCapacity = errors.New("config: queue capacity must be > 0")
	ErrConfigHTTPAddr      = errors.New("config: empty http addr")
	ErrConfigBackoff       = errors.New("config: backoff max must be >= min")
	ErrConfigPyroscopeAddr = errors.New("config: empty pyroscope server address")
	ErrConfigJournalDir    = errors.New("config: empty journal dir")
)

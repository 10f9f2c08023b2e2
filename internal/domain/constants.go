package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultProcessTimeout bounds one chat call end-to-end
	DefaultProcessTimeout = 30 * time.Second
	// DefaultHTTPClientTimeout is the timeout for provider HTTP requests
	DefaultHTTPClientTimeout = 60 * time.Second
	// DefaultAnalysisTimeout is the timeout for analysis backend requests
	DefaultAnalysisTimeout = 15 * time.Second
	// DefaultGuestSessionTTL is how long an idle guest session survives
	DefaultGuestSessionTTL = 30 * time.Minute
)

// Limit constants
const (
	// MaxMessageLength caps an incoming chat message in bytes
	MaxMessageLength = 8192
	// MaxTickerLength is the longest symbol the triage path accepts
	MaxTickerLength = 5
	// DefaultMaxCacheEntries is the maximum number of reply cache entries
	DefaultMaxCacheEntries = 100
	// DefaultRatePerMinute is the per-session message budget
	DefaultRatePerMinute = 30
	// DefaultRateBurst is the per-session burst allowance
	DefaultRateBurst = 5
)

// History constants
const (
	// DefaultInputHistorySize caps the chat-input history navigator
	DefaultInputHistorySize = 50
	// DefaultTranscriptLimit is the default number of transcript rows to display
	DefaultTranscriptLimit = 20
)

// Model configuration constants
const (
	// DefaultMaxTokens is the default maximum number of tokens
	DefaultMaxTokens = 1024
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)

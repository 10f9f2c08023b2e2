package domain

import "time"

// ChatRecord captures one processed chat exchange for the transcript store.
type ChatRecord struct {
	Timestamp       time.Time      `json:"timestamp"`
	SessionID       string         `json:"session_id"`
	Guest           bool           `json:"guest"`
	Message         string         `json:"message"`
	Reply           string         `json:"reply"`
	ProcessingType  ProcessingType `json:"processing_type"`
	Success         bool           `json:"success"`
	ExecutionTimeMS int64          `json:"execution_time_ms"`
}

// HistoryEntry is one remembered chat-input line (client-side affordance,
// never a system of record).
type HistoryEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CacheEntry stores cached provider replies.
type CacheEntry struct {
	Key       string    `json:"key"`
	Reply     string    `json:"reply"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

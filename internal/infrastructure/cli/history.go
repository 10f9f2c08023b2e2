package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/risklens/internal/domain"
)

// Direction names an arrow-key navigation move.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// History is the ephemeral chat-input recall buffer. Submitted messages are
// appended newest-last; up/down arrows walk backward and forward through
// them while preserving the uncommitted draft.
//
// Entries are mirrored best-effort to a JSONL file so the buffer survives
// restarts; persistence failures never surface to the caller.
type History struct {
	mu       sync.Mutex
	entries  []domain.HistoryEntry
	max      int
	filePath string

	// navigation state: index into entries while navigating, -1 when idle
	index int
	draft string
}

// NewHistory builds a navigator capped at max entries (default 50). filePath
// may be empty to disable the disk mirror.
func NewHistory(max int, filePath string) *History {
	if max <= 0 {
		max = domain.DefaultInputHistorySize
	}
	h := &History{max: max, filePath: filePath, index: -1}
	h.load()
	return h
}

// Add records a submitted message. Blank input is a no-op; an entry equal to
// the immediately preceding one is dropped (no global dedup). Exceeding the
// cap drops the oldest entries. Adding also exits any navigation in progress.
func (h *History) Add(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.entries); n > 0 && h.entries[n-1].Message == message {
		h.resetLocked()
		return
	}
	h.entries = append(h.entries, domain.HistoryEntry{Message: message, Timestamp: time.Now()})
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	h.resetLocked()
	h.persistLocked()
}

// Navigate moves through history. Up from an idle state snapshots the
// current uncommitted input and returns the most recent entry; repeated up
// walks older and clamps at the oldest. Down walks newer and, past the
// newest entry, restores the snapshot and exits navigation. Down while idle
// returns the input unchanged.
func (h *History) Navigate(direction Direction, currentInput string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == 0 {
		return currentInput
	}

	switch direction {
	case DirectionUp:
		if h.index == -1 {
			h.draft = currentInput
			h.index = len(h.entries) - 1
		} else if h.index > 0 {
			h.index--
		}
		return h.entries[h.index].Message

	case DirectionDown:
		if h.index == -1 {
			return currentInput
		}
		h.index++
		if h.index >= len(h.entries) {
			draft := h.draft
			h.resetLocked()
			return draft
		}
		return h.entries[h.index].Message

	default:
		return currentInput
	}
}

// Reset exits navigation mode and discards the draft snapshot. Recorded
// entries are kept.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
}

// Navigating reports whether an arrow-key walk is in progress.
func (h *History) Navigating() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index != -1
}

// Entries returns a copy of the recorded messages, oldest first.
func (h *History) Entries() []domain.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clear drops all recorded entries and the disk mirror.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.resetLocked()
	if h.filePath != "" {
		_ = os.Remove(h.filePath)
	}
}

func (h *History) resetLocked() {
	h.index = -1
	h.draft = ""
}

func (h *History) persistLocked() {
	if h.filePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(h.filePath), domain.DirectoryPermissions); err != nil {
		return
	}
	var buf strings.Builder
	for _, entry := range h.entries {
		line, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	_ = os.WriteFile(h.filePath, []byte(buf.String()), 0o644)
}

func (h *History) load() {
	if h.filePath == "" {
		return
	}
	data, err := os.ReadFile(h.filePath)
	if err != nil {
		return
	}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry domain.HistoryEntry
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			h.entries = append(h.entries, entry)
		}
	}
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

package chatlog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/pkg/filesystem"
	"github.com/doeshing/risklens/internal/ports"
)

// FileStore appends chat exchanges to a jsonl file. It serves as the
// fallback when SQLite is unavailable and as a lightweight store for tests.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a transcript store backed by the given jsonl file.
// An empty path defaults to ~/.risklens/chat/chat.jsonl.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = filesystem.AppDir("chat", "chat.jsonl")
	}
	return &FileStore{path: path}
}

// Save implements ports.ChatLogStore.
func (f *FileStore) Save(record domain.ChatRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = file.Write(data)
	return err
}

// Records loads transcript entries, newest first, filtered by session and
// optional search text. Malformed lines are skipped.
func (f *FileStore) Records(sessionID string, limit int, search string) ([]domain.ChatRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	var records []domain.ChatRecord
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var rec domain.ChatRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if sessionID != "" && rec.SessionID != sessionID {
			continue
		}
		if search != "" && !strings.Contains(rec.Message, search) && !strings.Contains(rec.Reply, search) {
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Clear removes entries. An empty session ID deletes the backing file; a
// specific session rewrites the file without that session's lines.
func (f *FileStore) Clear(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sessionID == "" {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var kept [][]byte
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var rec domain.ChatRecord
		if err := json.Unmarshal(line, &rec); err == nil && rec.SessionID == sessionID {
			continue
		}
		kept = append(kept, line)
	}
	out := bytes.Join(kept, []byte("\n"))
	if len(out) > 0 {
		out = append(out, '\n')
	}
	return os.WriteFile(f.path, out, 0o644)
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

var _ ports.ChatLogStore = (*FileStore)(nil)

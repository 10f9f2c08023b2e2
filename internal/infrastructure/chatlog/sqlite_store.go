package chatlog

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/pkg/filesystem"
	"github.com/doeshing/risklens/internal/ports"
)

// SQLiteStore persists chat transcripts in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore creates (or opens) the transcript database at path. An empty
// path defaults to ~/.risklens/chat/chat.db. If the database cannot be
// opened, the store degrades to an append-only jsonl file beside it.
func NewSQLiteStore(path string) *SQLiteStore {
	if path == "" {
		path = filesystem.AppDir("chat", "chat.db")
	}
	_ = os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &SQLiteStore{path: path}
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		return &SQLiteStore{path: path}
	}
	return store
}

func (s *SQLiteStore) init() error {
	if s.db == nil {
		return os.ErrInvalid
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS exchanges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT,
		session_id TEXT,
		guest INTEGER,
		message TEXT,
		reply TEXT,
		processing_type TEXT,
		success INTEGER,
		execution_time_ms INTEGER
	);`)
	return err
}

// Save inserts a processed exchange.
func (s *SQLiteStore) Save(record domain.ChatRecord) error {
	if s.db == nil {
		return (&FileStore{path: jsonlPath(s.path)}).Save(record)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO exchanges
		(timestamp, session_id, guest, message, reply, processing_type, success, execution_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.Format(domain.TimestampFormat),
		record.SessionID,
		boolToInt(record.Guest),
		record.Message,
		record.Reply,
		string(record.ProcessingType),
		boolToInt(record.Success),
		record.ExecutionTimeMS,
	)
	return err
}

// Records returns transcript entries for a session, newest first.
// Limit and search are optional; an empty session ID matches every session.
func (s *SQLiteStore) Records(sessionID string, limit int, search string) ([]domain.ChatRecord, error) {
	if s.db == nil {
		return (&FileStore{path: jsonlPath(s.path)}).Records(sessionID, limit, search)
	}
	builder := strings.Builder{}
	builder.WriteString("SELECT timestamp, session_id, guest, message, reply, processing_type, success, execution_time_ms FROM exchanges")
	var clauses []string
	var args []interface{}
	if sessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, sessionID)
	}
	if search != "" {
		clauses = append(clauses, "(message LIKE ? OR reply LIKE ?)")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	if len(clauses) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(clauses, " AND "))
	}
	builder.WriteString(" ORDER BY datetime(timestamp) DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.Query(builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.ChatRecord
	for rows.Next() {
		var rec domain.ChatRecord
		var ts, processing string
		var guest, success int
		if err := rows.Scan(&ts, &rec.SessionID, &guest, &rec.Message, &rec.Reply, &processing, &success, &rec.ExecutionTimeMS); err != nil {
			return nil, err
		}
		if t, err := time.Parse(domain.TimestampFormat, ts); err == nil {
			rec.Timestamp = t
		}
		rec.Guest = guest == 1
		rec.Success = success == 1
		rec.ProcessingType = domain.ProcessingType(processing)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes transcript entries. An empty session ID wipes everything.
func (s *SQLiteStore) Clear(sessionID string) error {
	if s.db == nil {
		return (&FileStore{path: jsonlPath(s.path)}).Clear(sessionID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == "" {
		_, err := s.db.Exec("DELETE FROM exchanges")
		return err
	}
	_, err := s.db.Exec("DELETE FROM exchanges WHERE session_id = ?", sessionID)
	return err
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func jsonlPath(dbPath string) string {
	return strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + ".jsonl"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.ChatLogStore = (*SQLiteStore)(nil)

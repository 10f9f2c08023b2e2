// Package portfolio persists per-session holdings.
//
// Two adapters implement the PortfolioStore port: a SQLite store for durable
// user portfolios and an in-memory store for guest sessions and tests. Both
// enforce the same semantics: adds average the cost basis, removes are
// partial or whole, and every operation is scoped to one session ref.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

// SQLiteStore persists positions in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore creates (or opens) the portfolio database. An empty path
// defaults to ~/.risklens/data/portfolio.db.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = filesystem.AppDir("data", "portfolio.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open portfolio db: %w", err)
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		return nil, fmt.Errorf("init portfolio schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		guest INTEGER NOT NULL DEFAULT 0,
		symbol TEXT NOT NULL,
		quantity REAL NOT NULL,
		avg_price REAL NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(session_id, guest, symbol)
	);`)
	return err
}

// Positions returns all holdings for the session, sorted by symbol.
func (s *SQLiteStore) Positions(ctx context.Context, ref domain.SessionRef) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, quantity, avg_price, updated_at FROM positions
		 WHERE session_id = ? AND guest = ? ORDER BY symbol`,
		ref.ID, boolToInt(ref.Guest))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// Position returns one holding or domain.ErrPositionNotFound.
func (s *SQLiteStore) Position(ctx context.Context, ref domain.SessionRef, symbol string) (domain.Position, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT symbol, quantity, avg_price, updated_at FROM positions
		 WHERE session_id = ? AND guest = ? AND symbol = ?`,
		ref.ID, boolToInt(ref.Guest), normalizeSymbol(symbol))
	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Position{}, fmt.Errorf("%s: %w", symbol, domain.ErrPositionNotFound)
	}
	return pos, err
}

// Add inserts a holding or folds the purchase into an existing one, averaging
// the cost basis. Returns the resulting position.
func (s *SQLiteStore) Add(ctx context.Context, ref domain.SessionRef, symbol string, quantity, price float64) (domain.Position, error) {
	if quantity <= 0 {
		return domain.Position{}, fmt.Errorf("quantity must be positive, got %v", quantity)
	}
	if price < 0 {
		return domain.Position{}, fmt.Errorf("price must not be negative, got %v", price)
	}
	symbol = normalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Position(ctx, ref, symbol)
	now := time.Now().UTC()
	switch {
	case errors.Is(err, domain.ErrPositionNotFound):
		pos := domain.Position{Symbol: symbol, Quantity: quantity, AvgPrice: price, UpdatedAt: now}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO positions (session_id, guest, symbol, quantity, avg_price, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ref.ID, boolToInt(ref.Guest), symbol, quantity, price, now.Format(domain.TimestampFormat))
		return pos, err
	case err != nil:
		return domain.Position{}, err
	}

	merged := mergePurchase(existing, quantity, price, now)
	_, err = s.db.ExecContext(ctx,
		`UPDATE positions SET quantity = ?, avg_price = ?, updated_at = ?
		 WHERE session_id = ? AND guest = ? AND symbol = ?`,
		merged.Quantity, merged.AvgPrice, now.Format(domain.TimestampFormat),
		ref.ID, boolToInt(ref.Guest), symbol)
	return merged, err
}

// Remove reduces or deletes a holding. quantity == 0 removes the whole
// position; removing more shares than held is an error.
func (s *SQLiteStore) Remove(ctx context.Context, ref domain.SessionRef, symbol string, quantity float64) error {
	symbol = normalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Position(ctx, ref, symbol)
	if err != nil {
		return err
	}

	remaining, err := reduceQuantity(existing, quantity)
	if err != nil {
		return err
	}

	if remaining == 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM positions WHERE session_id = ? AND guest = ? AND symbol = ?`,
			ref.ID, boolToInt(ref.Guest), symbol)
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE positions SET quantity = ?, updated_at = ?
		 WHERE session_id = ? AND guest = ? AND symbol = ?`,
		remaining, time.Now().UTC().Format(domain.TimestampFormat),
		ref.ID, boolToInt(ref.Guest), symbol)
	return err
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (domain.Position, error) {
	var pos domain.Position
	var ts string
	if err := row.Scan(&pos.Symbol, &pos.Quantity, &pos.AvgPrice, &ts); err != nil {
		return domain.Position{}, err
	}
	if t, err := time.Parse(domain.TimestampFormat, ts); err == nil {
		pos.UpdatedAt = t
	}
	return pos, nil
}

// mergePurchase folds a new lot into an existing position with a
// weighted-average cost basis.
func mergePurchase(existing domain.Position, quantity, price float64, now time.Time) domain.Position {
	total := existing.Quantity + quantity
	existing.AvgPrice = (existing.CostBasis() + quantity*price) / total
	existing.Quantity = total
	existing.UpdatedAt = now
	return existing
}

func reduceQuantity(existing domain.Position, quantity float64) (float64, error) {
	if quantity < 0 {
		return 0, fmt.Errorf("quantity must not be negative, got %v", quantity)
	}
	if quantity == 0 || quantity == existing.Quantity {
		return 0, nil
	}
	if quantity > existing.Quantity {
		return 0, fmt.Errorf("%s holds %v shares, cannot remove %v: %w",
			existing.Symbol, existing.Quantity, quantity, domain.ErrInsufficientShares)
	}
	return existing.Quantity - quantity, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.PortfolioStore = (*SQLiteStore)(nil)

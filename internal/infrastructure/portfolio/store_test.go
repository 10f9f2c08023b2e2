package portfolio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

func testStores(t *testing.T) map[string]ports.PortfolioStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "portfolio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]ports.PortfolioStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestAddCreatesPosition(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := domain.SessionRef{ID: "user-1"}

			pos, err := store.Add(ctx, ref, "AAPL", 100, 150)
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			if pos.Quantity != 100 || pos.AvgPrice != 150 {
				t.Fatalf("Add() = %+v, want 100 @ 150", pos)
			}

			positions, err := store.Positions(ctx, ref)
			if err != nil {
				t.Fatalf("Positions() error = %v", err)
			}
			if len(positions) != 1 || positions[0].Symbol != "AAPL" {
				t.Fatalf("Positions() = %+v, want single AAPL", positions)
			}
		})
	}
}

func TestAddAveragesCostBasis(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := domain.SessionRef{ID: "user-1"}

			mustAdd(t, store, ref, "TSLA", 10, 100)
			pos, err := store.Add(ctx, ref, "TSLA", 10, 200)
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			if pos.Quantity != 20 || pos.AvgPrice != 150 {
				t.Fatalf("merged position = %+v, want 20 @ 150", pos)
			}
		})
	}
}

func TestAddNormalizesSymbolCase(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := domain.SessionRef{ID: "user-1"}

			mustAdd(t, store, ref, "msft", 5, 300)
			pos, err := store.Position(ctx, ref, "MSFT")
			if err != nil {
				t.Fatalf("Position() error = %v", err)
			}
			if pos.Symbol != "MSFT" {
				t.Fatalf("symbol = %s, want MSFT", pos.Symbol)
			}
		})
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := domain.SessionRef{ID: "user-1"}

			if _, err := store.Add(ctx, ref, "AAPL", 0, 150); err == nil {
				t.Fatal("Add() with zero quantity should fail")
			}
			if _, err := store.Add(ctx, ref, "AAPL", 10, -1); err == nil {
				t.Fatal("Add() with negative price should fail")
			}
		})
	}
}

func TestRemovePartialAndWhole(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := domain.SessionRef{ID: "user-1"}
			mustAdd(t, store, ref, "NVDA", 30, 500)

			if err := store.Remove(ctx, ref, "NVDA", 10); err != nil {
				t.Fatalf("partial Remove() error = %v", err)
			}
			pos, err := store.Position(ctx, ref, "NVDA")
			if err != nil {
				t.Fatalf("Position() error = %v", err)
			}
			if pos.Quantity != 20 {
				t.Fatalf("quantity after partial remove = %v, want 20", pos.Quantity)
			}
			if pos.AvgPrice != 500 {
				t.Fatalf("avg price changed on remove: %v", pos.AvgPrice)
			}

			// Zero quantity removes the whole position.
			if err := store.Remove(ctx, ref, "NVDA", 0); err != nil {
				t.Fatalf("whole Remove() error = %v", err)
			}
			if _, err := store.Position(ctx, ref, "NVDA"); !errors.Is(err, domain.ErrPositionNotFound) {
				t.Fatalf("Position() after remove = %v, want ErrPositionNotFound", err)
			}
		})
	}
}

func TestRemoveErrors(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := domain.SessionRef{ID: "user-1"}

			err := store.Remove(ctx, ref, "GOOGL", 0)
			if !errors.Is(err, domain.ErrPositionNotFound) {
				t.Fatalf("Remove() missing symbol = %v, want ErrPositionNotFound", err)
			}

			mustAdd(t, store, ref, "GOOGL", 5, 100)
			err = store.Remove(ctx, ref, "GOOGL", 50)
			if !errors.Is(err, domain.ErrInsufficientShares) {
				t.Fatalf("Remove() too many = %v, want ErrInsufficientShares", err)
			}
		})
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := domain.SessionRef{ID: "user-1"}
			guest := domain.SessionRef{ID: "user-1", Guest: true}

			mustAdd(t, store, user, "AAPL", 10, 100)

			positions, err := store.Positions(ctx, guest)
			if err != nil {
				t.Fatalf("Positions() error = %v", err)
			}
			if len(positions) != 0 {
				t.Fatalf("guest session sees user holdings: %+v", positions)
			}
		})
	}
}

func TestSplitStoreRoutesOnGuestFlag(t *testing.T) {
	ctx := context.Background()
	durable := NewMemoryStore()
	ephemeral := NewMemoryStore()
	store := NewSplitStore(durable, ephemeral)

	userRef := domain.SessionRef{ID: "user-1"}
	guestRef := domain.SessionRef{ID: "guest-1", Guest: true}
	mustAdd(t, store, userRef, "AAPL", 10, 150)
	mustAdd(t, store, guestRef, "TSLA", 5, 200)

	if positions, _ := durable.Positions(ctx, userRef); len(positions) != 1 {
		t.Fatalf("durable store holds %d positions, want 1", len(positions))
	}
	if positions, _ := durable.Positions(ctx, guestRef); len(positions) != 0 {
		t.Fatalf("guest holdings leaked into durable store: %+v", positions)
	}
	if positions, _ := ephemeral.Positions(ctx, guestRef); len(positions) != 1 {
		t.Fatalf("ephemeral store holds %d positions, want 1", len(positions))
	}

	if err := store.Remove(ctx, guestRef, "TSLA", 0); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if positions, _ := ephemeral.Positions(ctx, guestRef); len(positions) != 0 {
		t.Fatalf("Remove left guest holdings: %+v", positions)
	}
}

func TestMemoryStoreDropSession(t *testing.T) {
	store := NewMemoryStore()
	ref := domain.SessionRef{ID: "guest-1", Guest: true}
	mustAdd(t, store, ref, "AAPL", 1, 1)

	store.DropSession(ref)

	positions, err := store.Positions(context.Background(), ref)
	if err != nil {
		t.Fatalf("Positions() error = %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("DropSession left holdings: %+v", positions)
	}
}

func mustAdd(t *testing.T, store ports.PortfolioStore, ref domain.SessionRef, symbol string, qty, price float64) {
	t.Helper()
	if _, err := store.Add(context.Background(), ref, symbol, qty, price); err != nil {
		t.Fatalf("Add(%s) error = %v", symbol, err)
	}
}

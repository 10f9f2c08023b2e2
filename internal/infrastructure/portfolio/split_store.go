package portfolio

import (
	"context"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// SplitStore routes guest sessions to an ephemeral store and everything else
// to the durable one. Guest holdings never touch disk.
type SplitStore struct {
	durable   ports.PortfolioStore
	ephemeral ports.PortfolioStore
}

// NewSplitStore builds a store routing on the session ref's guest flag.
func NewSplitStore(durable, ephemeral ports.PortfolioStore) *SplitStore {
	return &SplitStore{durable: durable, ephemeral: ephemeral}
}

func (s *SplitStore) pick(ref domain.SessionRef) ports.PortfolioStore {
	if ref.Guest {
		return s.ephemeral
	}
	return s.durable
}

func (s *SplitStore) Positions(ctx context.Context, ref domain.SessionRef) ([]domain.Position, error) {
	return s.pick(ref).Positions(ctx, ref)
}

func (s *SplitStore) Position(ctx context.Context, ref domain.SessionRef, symbol string) (domain.Position, error) {
	return s.pick(ref).Position(ctx, ref, symbol)
}

func (s *SplitStore) Add(ctx context.Context, ref domain.SessionRef, symbol string, quantity, price float64) (domain.Position, error) {
	return s.pick(ref).Add(ctx, ref, symbol, quantity, price)
}

func (s *SplitStore) Remove(ctx context.Context, ref domain.SessionRef, symbol string, quantity float64) error {
	return s.pick(ref).Remove(ctx, ref, symbol, quantity)
}

var _ ports.PortfolioStore = (*SplitStore)(nil)

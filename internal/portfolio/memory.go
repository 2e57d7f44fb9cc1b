package portfolio

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store with the same conditional-write
// semantics as PGStore. It backs tests and local development without a
// database.
type MemoryStore struct {
	mu              sync.Mutex
	startingBalance decimal.Decimal
	portfolios      map[string]*Portfolio
	names           map[string]string
}

func NewMemoryStore(startingBalance decimal.Decimal) *MemoryStore {
	return &MemoryStore{
		startingBalance: startingBalance,
		portfolios:      make(map[string]*Portfolio),
		names:           make(map[string]string),
	}
}

// SetDisplayName records the display name resolved for leaderboard reads.
func (s *MemoryStore) SetDisplayName(userID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[userID] = name
}

func (s *MemoryStore) Ensure(ctx context.Context, userID string) (Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[userID]
	if !ok {
		p = &Portfolio{UserID: userID, Balance: s.startingBalance}
		s.portfolios[userID] = p
	}
	return snapshot(p), nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[userID]
	if !ok {
		return Portfolio{}, ErrNotFound
	}
	return snapshot(p), nil
}

func (s *MemoryStore) OpenPosition(ctx context.Context, userID string, pos Position) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[userID]
	if !ok || p.Balance.LessThan(pos.Margin) {
		return decimal.Zero, ErrInsufficientBalance
	}
	p.Balance = p.Balance.Sub(pos.Margin)
	p.Positions = append(p.Positions, pos)
	return p.Balance, nil
}

func (s *MemoryStore) ClosePosition(ctx context.Context, userID string, cl Close) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[userID]
	if !ok {
		return decimal.Zero, ErrPositionNotFound
	}
	pos := p.Position(cl.PositionID)
	if pos == nil || !pos.IsOpen {
		return decimal.Zero, ErrPositionNotFound
	}
	closePosition(pos, cl)
	p.Balance = p.Balance.Add(cl.BalanceDelta)
	return p.Balance, nil
}

func (s *MemoryStore) OpenPortfolios(ctx context.Context) ([]Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Portfolio
	for _, p := range s.portfolios {
		var open []Position
		for _, pos := range p.Positions {
			if pos.IsOpen {
				open = append(open, pos)
			}
		}
		if len(open) == 0 {
			continue
		}
		out = append(out, Portfolio{UserID: p.UserID, Balance: p.Balance, Positions: open})
	}
	return out, nil
}

func (s *MemoryStore) ApplySweep(ctx context.Context, userID string, closes []Close) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[userID]
	if !ok {
		return 0, nil
	}
	applied := 0
	delta := decimal.Zero
	for _, cl := range closes {
		pos := p.Position(cl.PositionID)
		if pos == nil || !pos.IsOpen {
			continue
		}
		closePosition(pos, cl)
		applied++
		delta = delta.Add(cl.BalanceDelta)
	}
	if applied > 0 {
		p.Balance = p.Balance.Add(delta)
	}
	return applied, nil
}

func (s *MemoryStore) ClosedPositionsByUser(ctx context.Context) ([]UserPositions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []UserPositions
	for _, p := range s.portfolios {
		up := UserPositions{UserID: p.UserID, DisplayName: s.names[p.UserID]}
		for _, pos := range p.Positions {
			if !pos.IsOpen {
				up.Positions = append(up.Positions, pos)
			}
		}
		out = append(out, up)
	}
	return out, nil
}

func (s *MemoryStore) Reset(ctx context.Context, userID string) (Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.portfolios[userID]
	if !ok {
		return Portfolio{}, ErrNotFound
	}
	p.Balance = s.startingBalance
	p.Positions = nil
	return snapshot(p), nil
}

func closePosition(pos *Position, cl Close) {
	closedAt := cl.ClosedAt
	pos.IsOpen = false
	pos.ClosedAt = &closedAt
	pos.ClosePrice = cl.ClosePrice
	pos.Profit = cl.Profit
}

func snapshot(p *Portfolio) Portfolio {
	out := Portfolio{UserID: p.UserID, Balance: p.Balance}
	out.Positions = append(out.Positions, p.Positions...)
	return out
}

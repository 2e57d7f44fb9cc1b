package leaderboard

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"paperperps/internal/portfolio"
)

const topSize = 10

type Entry struct {
	UserID   string          `json:"user_id"`
	Username string          `json:"username"`
	PnL      decimal.Decimal `json:"pnl"`
	Volume   decimal.Decimal `json:"volume"`
	Trades   int             `json:"trades"`
	WinRate  decimal.Decimal `json:"win_rate"`
}

// Service is a read-only aggregation over closed positions.
type Service struct {
	store portfolio.Store
}

func NewService(store portfolio.Store) *Service {
	return &Service{store: store}
}

// Top ranks users by realized PnL and returns the top ten.
func (s *Service) Top(ctx context.Context) ([]Entry, error) {
	users, err := s.store.ClosedPositionsByUser(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(users))
	for _, u := range users {
		e := computeEntry(u)
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PnL.GreaterThan(entries[j].PnL)
	})
	if len(entries) > topSize {
		entries = entries[:topSize]
	}
	return entries, nil
}

// computeEntry aggregates one user's closed positions. Volume counts both
// sides of each trade: the opening notional (margin*leverage) plus the
// closing notional ((margin+profit)*leverage).
func computeEntry(u portfolio.UserPositions) Entry {
	e := Entry{
		UserID:   u.UserID,
		Username: u.DisplayName,
		PnL:      decimal.Zero,
		Volume:   decimal.Zero,
		WinRate:  decimal.Zero,
	}
	wins := 0
	for _, pos := range u.Positions {
		leverage := decimal.NewFromInt(int64(pos.Leverage))
		e.PnL = e.PnL.Add(pos.Profit)
		opening := pos.Margin.Mul(leverage)
		closing := pos.Margin.Add(pos.Profit).Mul(leverage)
		e.Volume = e.Volume.Add(opening).Add(closing)
		e.Trades++
		if pos.Profit.GreaterThan(decimal.Zero) {
			wins++
		}
	}
	if e.Trades > 0 {
		e.WinRate = decimal.NewFromInt(int64(wins)).
			Div(decimal.NewFromInt(int64(e.Trades))).
			Mul(decimal.NewFromInt(100))
	}
	return e
}

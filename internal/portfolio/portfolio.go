package portfolio

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"paperperps/internal/types"
)

var (
	// ErrNotFound means no portfolio exists for the user.
	ErrNotFound = errors.New("portfolio not found")
	// ErrPositionNotFound covers both an unknown position id and a position
	// that is already closed.
	ErrPositionNotFound = errors.New("position not found or already closed")
	// ErrInsufficientBalance is the admission-control rejection on open.
	ErrInsufficientBalance = errors.New("insufficient balance for margin requirement")
)

// Position is a leveraged long/short position owned by one portfolio.
// Lifecycle is a single one-way transition: open -> closed. The close fields
// are written exactly once, when the position closes.
type Position struct {
	ID         string          `json:"id"`
	Symbol     types.Symbol    `json:"symbol"`
	Margin     decimal.Decimal `json:"margin"`
	Leverage   int             `json:"leverage"`
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	IsLong     bool            `json:"is_long"`
	OpenedAt   time.Time       `json:"opened_at"`
	IsOpen     bool            `json:"is_open"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
	ClosePrice decimal.Decimal `json:"close_price"`
	Profit     decimal.Decimal `json:"profit"`
}

// Portfolio holds one user's balance and positions.
type Portfolio struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Positions []Position      `json:"positions"`
}

func (p *Portfolio) Position(id string) *Position {
	for i := range p.Positions {
		if p.Positions[i].ID == id {
			return &p.Positions[i]
		}
	}
	return nil
}

// Close carries the fields written when a position transitions to closed.
// BalanceDelta is the amount credited back to the portfolio (margin + profit).
type Close struct {
	PositionID   string
	ClosedAt     time.Time
	ClosePrice   decimal.Decimal
	Profit       decimal.Decimal
	BalanceDelta decimal.Decimal
}

// UserPositions groups one user's closed positions for leaderboard reads.
type UserPositions struct {
	UserID      string
	DisplayName string
	Positions   []Position
}

// Store is the ledger store. Implementations must make OpenPosition,
// ClosePosition and ApplySweep atomic: the balance change and the position
// mutation land together or not at all, and the conditional guards
// (balance >= margin on open, is_open on close) are evaluated inside the
// same write, never read-then-write.
type Store interface {
	// Ensure creates the portfolio with the starting balance if absent and
	// returns it. The create is an idempotent upsert keyed by user id.
	Ensure(ctx context.Context, userID string) (Portfolio, error)
	// Get returns the portfolio or ErrNotFound.
	Get(ctx context.Context, userID string) (Portfolio, error)
	// OpenPosition debits the margin and appends the position in one
	// conditional write guarded by balance >= margin. Returns the new
	// balance, or ErrInsufficientBalance with no mutation.
	OpenPosition(ctx context.Context, userID string, pos Position) (decimal.Decimal, error)
	// ClosePosition flips the position to closed and credits BalanceDelta in
	// one write guarded by is_open. Returns the new balance, or
	// ErrPositionNotFound with no mutation.
	ClosePosition(ctx context.Context, userID string, cl Close) (decimal.Decimal, error)
	// OpenPortfolios returns every portfolio that has at least one open
	// position, with only the open positions loaded.
	OpenPortfolios(ctx context.Context) ([]Portfolio, error)
	// ApplySweep closes the given positions and applies their accumulated
	// balance delta in a single transaction. Each close is guarded by
	// is_open; a position that lost a race to a manual close is skipped and
	// its delta is not applied. Returns how many positions were closed.
	ApplySweep(ctx context.Context, userID string, closes []Close) (int, error)
	// ClosedPositionsByUser returns every user's closed positions with the
	// display name resolved, for leaderboard aggregation.
	ClosedPositionsByUser(ctx context.Context) ([]UserPositions, error)
	// Reset restores the starting balance and removes all positions.
	Reset(ctx context.Context, userID string) (Portfolio, error)
}

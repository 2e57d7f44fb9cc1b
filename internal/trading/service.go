package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paperperps/internal/metrics"
	"paperperps/internal/portfolio"
	"paperperps/internal/pricing"
	"paperperps/internal/types"
)

// ErrUnsupportedSymbol rejects instruments outside the fixed symbol set.
var ErrUnsupportedSymbol = errors.New("unsupported symbol")

// ValidationError names the request fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// Service is the position lifecycle engine. All balance correctness comes
// from the store's conditional writes; the service itself holds no state and
// may be called concurrently with the liquidation sweeper.
type Service struct {
	store  portfolio.Store
	prices pricing.Source
	met    *metrics.Metrics
	now    func() time.Time
}

func NewService(store portfolio.Store, prices pricing.Source, met *metrics.Metrics) *Service {
	return &Service{store: store, prices: prices, met: met, now: time.Now}
}

type OpenRequest struct {
	UserID   string
	Symbol   types.Symbol
	Margin   decimal.Decimal
	IsLong   bool
	Leverage int
}

type OpenResult struct {
	Balance  decimal.Decimal    `json:"balance"`
	Position portfolio.Position `json:"position"`
}

type CloseResult struct {
	Balance    decimal.Decimal `json:"balance"`
	Profit     decimal.Decimal `json:"profit"`
	ClosePrice decimal.Decimal `json:"close_price"`
}

func (s *Service) Open(ctx context.Context, req OpenRequest) (OpenResult, error) {
	var bad []string
	if req.UserID == "" {
		bad = append(bad, "user_id")
	}
	if req.Margin.LessThanOrEqual(decimal.Zero) {
		bad = append(bad, "margin")
	}
	if req.Leverage < types.MinLeverage || req.Leverage > types.MaxLeverage {
		bad = append(bad, "leverage")
	}
	if len(bad) > 0 {
		return OpenResult{}, &ValidationError{Fields: bad}
	}
	if !req.Symbol.Supported() {
		return OpenResult{}, ErrUnsupportedSymbol
	}
	entryPrice, err := s.prices.MarkPrice(ctx, req.Symbol)
	if err != nil {
		s.met.OracleFailures.Inc()
		return OpenResult{}, fmt.Errorf("open %s: %w", req.Symbol, err)
	}
	// The ensure and the debit are not one transaction; the balance guard in
	// OpenPosition independently protects correctness.
	if _, err := s.store.Ensure(ctx, req.UserID); err != nil {
		return OpenResult{}, err
	}
	pos := portfolio.Position{
		ID:         uuid.NewString(),
		Symbol:     req.Symbol,
		Margin:     req.Margin,
		Leverage:   req.Leverage,
		Size:       PositionSize(req.Margin, req.Leverage, entryPrice),
		EntryPrice: entryPrice,
		IsLong:     req.IsLong,
		OpenedAt:   s.now().UTC(),
		IsOpen:     true,
	}
	balance, err := s.store.OpenPosition(ctx, req.UserID, pos)
	if err != nil {
		return OpenResult{}, err
	}
	s.met.PositionsOpened.Inc()
	return OpenResult{Balance: balance, Position: pos}, nil
}

func (s *Service) Close(ctx context.Context, userID, positionID string) (CloseResult, error) {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return CloseResult{}, err
	}
	pos := p.Position(positionID)
	if pos == nil || !pos.IsOpen {
		return CloseResult{}, portfolio.ErrPositionNotFound
	}
	mark, err := s.prices.MarkPrice(ctx, pos.Symbol)
	if err != nil {
		s.met.OracleFailures.Inc()
		return CloseResult{}, fmt.Errorf("close %s: %w", pos.Symbol, err)
	}
	pnl := PnL(*pos, mark)
	// The margin is returned in full; a close below the liquidation
	// threshold can drive the balance negative. Permitted, see DESIGN.md.
	balance, err := s.store.ClosePosition(ctx, userID, portfolio.Close{
		PositionID:   positionID,
		ClosedAt:     s.now().UTC(),
		ClosePrice:   mark,
		Profit:       pnl,
		BalanceDelta: pnl.Add(pos.Margin),
	})
	if err != nil {
		return CloseResult{}, err
	}
	s.met.PositionsClosed.Inc()
	return CloseResult{Balance: balance, Profit: pnl, ClosePrice: mark}, nil
}

// OpenPositions returns the user's open positions with the current balance.
func (s *Service) OpenPositions(ctx context.Context, userID string) (decimal.Decimal, []portfolio.Position, error) {
	return s.filterPositions(ctx, userID, true)
}

// ClosedPositions returns the user's trade history.
func (s *Service) ClosedPositions(ctx context.Context, userID string) (decimal.Decimal, []portfolio.Position, error) {
	return s.filterPositions(ctx, userID, false)
}

func (s *Service) filterPositions(ctx context.Context, userID string, open bool) (decimal.Decimal, []portfolio.Position, error) {
	p, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			return decimal.Zero, []portfolio.Position{}, nil
		}
		return decimal.Zero, nil, err
	}
	out := []portfolio.Position{}
	for _, pos := range p.Positions {
		if pos.IsOpen == open {
			out = append(out, pos)
		}
	}
	return p.Balance, out, nil
}

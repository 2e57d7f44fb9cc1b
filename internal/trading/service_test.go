package trading

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperperps/internal/metrics"
	"paperperps/internal/portfolio"
	"paperperps/internal/pricing"
	"paperperps/internal/types"
)

type stubOracle struct {
	mu     sync.Mutex
	prices map[types.Symbol]decimal.Decimal
}

func (s *stubOracle) MarkPrice(ctx context.Context, symbol types.Symbol) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, pricing.ErrPriceUnavailable
	}
	return price, nil
}

func (s *stubOracle) set(symbol types.Symbol, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prices == nil {
		s.prices = map[types.Symbol]decimal.Decimal{}
	}
	s.prices[symbol] = decimal.RequireFromString(price)
}

func newTestService(t *testing.T) (*Service, *portfolio.MemoryStore, *stubOracle) {
	t.Helper()
	store := portfolio.NewMemoryStore(decimal.NewFromInt(10000))
	oracle := &stubOracle{}
	svc := NewService(store, oracle, metrics.New(prometheus.NewRegistry()))
	return svc, store, oracle
}

func TestOpenPosition(t *testing.T) {
	svc, store, oracle := newTestService(t)
	oracle.set(types.SymbolBTCUSD, "50000")
	ctx := context.Background()

	res, err := svc.Open(ctx, OpenRequest{
		UserID:   "u1",
		Symbol:   types.SymbolBTCUSD,
		Margin:   decimal.NewFromInt(1000),
		IsLong:   true,
		Leverage: 10,
	})
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(9000)), "balance = %s", res.Balance)
	assert.True(t, res.Position.Size.Equal(decimal.RequireFromString("0.2")), "size = %s", res.Position.Size)
	assert.True(t, res.Position.EntryPrice.Equal(decimal.NewFromInt(50000)))
	assert.True(t, res.Position.IsOpen)

	p, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, p.Positions, 1)
	assert.True(t, p.Balance.Equal(decimal.NewFromInt(9000)))
}

func TestOpenValidation(t *testing.T) {
	svc, _, oracle := newTestService(t)
	oracle.set(types.SymbolBTCUSD, "50000")
	ctx := context.Background()

	tests := []struct {
		name   string
		req    OpenRequest
		fields []string
	}{
		{
			name:   "zero margin",
			req:    OpenRequest{UserID: "u1", Symbol: types.SymbolBTCUSD, Margin: decimal.Zero, Leverage: 10},
			fields: []string{"margin"},
		},
		{
			name:   "negative margin",
			req:    OpenRequest{UserID: "u1", Symbol: types.SymbolBTCUSD, Margin: decimal.NewFromInt(-5), Leverage: 10},
			fields: []string{"margin"},
		},
		{
			name:   "leverage too low",
			req:    OpenRequest{UserID: "u1", Symbol: types.SymbolBTCUSD, Margin: decimal.NewFromInt(100), Leverage: 0},
			fields: []string{"leverage"},
		},
		{
			name:   "leverage too high",
			req:    OpenRequest{UserID: "u1", Symbol: types.SymbolBTCUSD, Margin: decimal.NewFromInt(100), Leverage: 51},
			fields: []string{"leverage"},
		},
		{
			name:   "both bad",
			req:    OpenRequest{UserID: "u1", Symbol: types.SymbolBTCUSD, Margin: decimal.Zero, Leverage: 99},
			fields: []string{"margin", "leverage"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Open(ctx, tt.req)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.fields, vErr.Fields)
		})
	}
}

func TestOpenUnsupportedSymbol(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Open(context.Background(), OpenRequest{
		UserID:   "u1",
		Symbol:   types.Symbol("DOGEUSD"),
		Margin:   decimal.NewFromInt(100),
		Leverage: 2,
	})
	assert.ErrorIs(t, err, ErrUnsupportedSymbol)
}

func TestOpenPriceUnavailable(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Open(ctx, OpenRequest{
		UserID:   "u1",
		Symbol:   types.SymbolBTCUSD,
		Margin:   decimal.NewFromInt(100),
		Leverage: 2,
	})
	assert.ErrorIs(t, err, pricing.ErrPriceUnavailable)
	// No mutation: the portfolio was never created.
	_, err = store.Get(ctx, "u1")
	assert.ErrorIs(t, err, portfolio.ErrNotFound)
}

func TestOpenInsufficientBalance(t *testing.T) {
	svc, store, oracle := newTestService(t)
	oracle.set(types.SymbolBTCUSD, "50000")
	ctx := context.Background()

	_, err := svc.Open(ctx, OpenRequest{
		UserID:   "u1",
		Symbol:   types.SymbolBTCUSD,
		Margin:   decimal.NewFromInt(10001),
		Leverage: 2,
	})
	assert.ErrorIs(t, err, portfolio.ErrInsufficientBalance)

	p, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.Balance.Equal(decimal.NewFromInt(10000)), "balance must be unchanged")
	assert.Empty(t, p.Positions)
}

func TestOpenConcurrentOverdraw(t *testing.T) {
	svc, store, oracle := newTestService(t)
	oracle.set(types.SymbolBTCUSD, "50000")
	ctx := context.Background()

	// Two concurrent opens of 6000 against 10000: exactly one must win.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Open(ctx, OpenRequest{
				UserID:   "u1",
				Symbol:   types.SymbolBTCUSD,
				Margin:   decimal.NewFromInt(6000),
				Leverage: 5,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, portfolio.ErrInsufficientBalance)
			failed++
		}
	}
	assert.Equal(t, 1, failed, "exactly one open must fail")

	p, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.Balance.Equal(decimal.NewFromInt(4000)), "balance = %s", p.Balance)
	assert.Len(t, p.Positions, 1)
}

func TestClosePosition(t *testing.T) {
	svc, store, oracle := newTestService(t)
	oracle.set(types.SymbolBTCUSD, "50000")
	ctx := context.Background()

	res, err := svc.Open(ctx, OpenRequest{
		UserID:   "u1",
		Symbol:   types.SymbolBTCUSD,
		Margin:   decimal.NewFromInt(1000),
		IsLong:   true,
		Leverage: 10,
	})
	require.NoError(t, err)

	oracle.set(types.SymbolBTCUSD, "55000")
	closed, err := svc.Close(ctx, "u1", res.Position.ID)
	require.NoError(t, err)
	assert.True(t, closed.Profit.Equal(decimal.NewFromInt(1000)), "profit = %s", closed.Profit)
	assert.True(t, closed.ClosePrice.Equal(decimal.NewFromInt(55000)))
	assert.True(t, closed.Balance.Equal(decimal.NewFromInt(11000)), "balance = %s", closed.Balance)

	p, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, p.Positions, 1)
	pos := p.Positions[0]
	assert.False(t, pos.IsOpen)
	require.NotNil(t, pos.ClosedAt)
	assert.True(t, pos.Profit.Equal(decimal.NewFromInt(1000)))
}

func TestCloseLossCanDriveBalanceNegative(t *testing.T) {
	svc, _, oracle := newTestService(t)
	oracle.set(types.SymbolBTCUSD, "50000")
	ctx := context.Background()

	res, err := svc.Open(ctx, OpenRequest{
		UserID:   "u1",
		Symbol:   types.SymbolBTCUSD,
		Margin:   decimal.NewFromInt(9000),
		IsLong:   true,
		Leverage: 10,
	})
	require.NoError(t, err)

	// Loss well past the liquidation threshold; manual close is not guarded.
	oracle.set(types.SymbolBTCUSD, "40000")
	closed, err := svc.Close(ctx, "u1", res.Position.ID)
	require.NoError(t, err)
	assert.True(t, closed.Profit.Equal(decimal.NewFromInt(-18000)))
	assert.True(t, closed.Balance.Equal(decimal.NewFromInt(-8000)), "balance = %s", closed.Balance)
}

func TestCloseErrors(t *testing.T) {
	svc, _, oracle := newTestService(t)
	oracle.set(types.SymbolBTCUSD, "50000")
	ctx := context.Background()

	_, err := svc.Close(ctx, "nobody", "p1")
	assert.ErrorIs(t, err, portfolio.ErrNotFound)

	res, err := svc.Open(ctx, OpenRequest{
		UserID:   "u1",
		Symbol:   types.SymbolBTCUSD,
		Margin:   decimal.NewFromInt(1000),
		IsLong:   true,
		Leverage: 10,
	})
	require.NoError(t, err)

	_, err = svc.Close(ctx, "u1", "unknown-id")
	assert.ErrorIs(t, err, portfolio.ErrPositionNotFound)

	_, err = svc.Close(ctx, "u1", res.Position.ID)
	require.NoError(t, err)
	_, err = svc.Close(ctx, "u1", res.Position.ID)
	assert.ErrorIs(t, err, portfolio.ErrPositionNotFound, "already-closed must be reported")
}

func TestCloseOracleFailureLeavesPositionOpen(t *testing.T) {
	svc, store, oracle := newTestService(t)
	oracle.set(types.SymbolBTCUSD, "50000")
	ctx := context.Background()

	res, err := svc.Open(ctx, OpenRequest{
		UserID:   "u1",
		Symbol:   types.SymbolBTCUSD,
		Margin:   decimal.NewFromInt(1000),
		IsLong:   true,
		Leverage: 10,
	})
	require.NoError(t, err)

	oracle.mu.Lock()
	delete(oracle.prices, types.SymbolBTCUSD)
	oracle.mu.Unlock()

	_, err = svc.Close(ctx, "u1", res.Position.ID)
	assert.ErrorIs(t, err, pricing.ErrPriceUnavailable)

	p, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.Positions[0].IsOpen, "position must stay open on oracle failure")
	assert.True(t, p.Balance.Equal(decimal.NewFromInt(9000)), "balance must be untouched")
}

func TestListPositions(t *testing.T) {
	svc, _, oracle := newTestService(t)
	oracle.set(types.SymbolBTCUSD, "50000")
	oracle.set(types.SymbolXAUUSD, "2400")
	ctx := context.Background()

	first, err := svc.Open(ctx, OpenRequest{UserID: "u1", Symbol: types.SymbolBTCUSD, Margin: decimal.NewFromInt(1000), IsLong: true, Leverage: 10})
	require.NoError(t, err)
	_, err = svc.Open(ctx, OpenRequest{UserID: "u1", Symbol: types.SymbolXAUUSD, Margin: decimal.NewFromInt(500), IsLong: false, Leverage: 5})
	require.NoError(t, err)
	_, err = svc.Close(ctx, "u1", first.Position.ID)
	require.NoError(t, err)

	_, open, err := svc.OpenPositions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, types.SymbolXAUUSD, open[0].Symbol)

	_, closed, err := svc.ClosedPositions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, types.SymbolBTCUSD, closed[0].Symbol)

	// Unknown user reads as empty, not an error.
	balance, open, err := svc.OpenPositions(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	assert.Empty(t, open)
}

func TestErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrUnsupportedSymbol, portfolio.ErrInsufficientBalance))
	assert.False(t, errors.Is(portfolio.ErrNotFound, portfolio.ErrPositionNotFound))
}

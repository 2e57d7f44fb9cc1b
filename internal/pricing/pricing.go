package pricing

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"paperperps/internal/types"
)

// ErrPriceUnavailable means the oracle had no valid quote. It is the only
// retryable failure in the system: callers may retry the whole operation,
// but must never proceed with a stale or default price.
var ErrPriceUnavailable = errors.New("price unavailable")

// Source supplies the current mark price for a symbol.
type Source interface {
	MarkPrice(ctx context.Context, symbol types.Symbol) (decimal.Decimal, error)
}

// FetchAll fetches one mark price per symbol concurrently. Symbols whose
// fetch fails are left out of the result; the failure is logged, not raised,
// so one bad quote does not stall the rest.
func FetchAll(ctx context.Context, src Source, symbols []types.Symbol) map[types.Symbol]decimal.Decimal {
	var mu sync.Mutex
	var wg sync.WaitGroup
	marks := make(map[types.Symbol]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol types.Symbol) {
			defer wg.Done()
			price, err := src.MarkPrice(ctx, symbol)
			if err != nil {
				log.WithField("symbol", string(symbol)).WithError(err).Warn("mark price fetch failed")
				return
			}
			mu.Lock()
			marks[symbol] = price
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return marks
}

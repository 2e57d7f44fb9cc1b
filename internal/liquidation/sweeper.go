package liquidation

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"paperperps/internal/metrics"
	"paperperps/internal/portfolio"
	"paperperps/internal/pricing"
	"paperperps/internal/trading"
	"paperperps/internal/types"
)

// Report is the only output of a sweep. Per-symbol oracle failures are soft
// skips, never surfaced to the caller.
type Report struct {
	Checked    int `json:"checked"`
	Liquidated int `json:"liquidated"`
}

// Sweeper force-closes every open position whose loss has consumed its
// posted margin. It runs independently of user-initiated operations and
// contends with them only through the store's conditional writes.
type Sweeper struct {
	store    portfolio.Store
	prices   pricing.Source
	met      *metrics.Metrics
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(store portfolio.Store, prices pricing.Source, met *metrics.Metrics, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, prices: prices, met: met, interval: interval, now: time.Now}
}

// Run executes a sweep every interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		log.Info("liquidation sweeper disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.WithField("interval", s.interval.String()).Info("liquidation sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.Sweep(ctx)
			if err != nil {
				log.WithError(err).Error("liquidation sweep failed")
				continue
			}
			if report.Liquidated > 0 {
				log.WithFields(log.Fields{"checked": report.Checked, "liquidated": report.Liquidated}).Info("liquidation sweep")
			}
		}
	}
}

// Sweep performs one pass over all portfolios with open positions.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	started := s.now()
	s.met.SweepRuns.Inc()
	defer func() {
		s.met.SweepDuration.Observe(time.Since(started).Seconds())
	}()

	portfolios, err := s.store.OpenPortfolios(ctx)
	if err != nil {
		return Report{}, err
	}
	report := Report{Checked: len(portfolios)}
	if len(portfolios) == 0 {
		return report, nil
	}

	seen := make(map[types.Symbol]bool)
	var symbols []types.Symbol
	for _, p := range portfolios {
		for _, pos := range p.Positions {
			if !seen[pos.Symbol] {
				seen[pos.Symbol] = true
				symbols = append(symbols, pos.Symbol)
			}
		}
	}
	// Symbols with a failed fetch are absent from marks and simply not
	// evaluated this cycle.
	marks := pricing.FetchAll(ctx, s.prices, symbols)
	if len(marks) < len(symbols) {
		s.met.OracleFailures.Add(float64(len(symbols) - len(marks)))
	}

	now := s.now().UTC()
	for _, p := range portfolios {
		var closes []portfolio.Close
		for _, pos := range p.Positions {
			mark, ok := marks[pos.Symbol]
			if !ok {
				continue
			}
			if !trading.Liquidatable(pos, mark) {
				continue
			}
			pnl := trading.PnL(pos, mark)
			closes = append(closes, portfolio.Close{
				PositionID:   pos.ID,
				ClosedAt:     now,
				ClosePrice:   mark,
				Profit:       pnl,
				BalanceDelta: pnl.Add(pos.Margin),
			})
		}
		if len(closes) == 0 {
			continue
		}
		applied, err := s.store.ApplySweep(ctx, p.UserID, closes)
		if err != nil {
			log.WithField("user_id", p.UserID).WithError(err).Error("sweep write failed")
			continue
		}
		report.Liquidated += applied
	}
	s.met.PositionsLiquidated.Add(float64(report.Liquidated))
	return report, nil
}

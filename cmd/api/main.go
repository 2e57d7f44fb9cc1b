package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"paperperps/internal/auth"
	"paperperps/internal/config"
	"paperperps/internal/db"
	"paperperps/internal/health"
	"paperperps/internal/httpserver"
	"paperperps/internal/leaderboard"
	"paperperps/internal/liquidation"
	"paperperps/internal/metrics"
	"paperperps/internal/portfolio"
	"paperperps/internal/pricing"
	"paperperps/internal/trading"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	startingBalance, err := decimal.NewFromString(cfg.StartingBalance)
	if err != nil {
		log.Fatal("invalid STARTING_BALANCE")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal(err)
	}

	met := metrics.New(prometheus.DefaultRegisterer)
	store := portfolio.NewPGStore(pool, startingBalance)
	oracle := pricing.NewYahooClient(cfg.PriceBaseURL, cfg.PriceTimeout)
	tradingSvc := trading.NewService(store, oracle, met)
	sweeper := liquidation.NewSweeper(store, oracle, met, cfg.SweepInterval)
	leaderboardSvc := leaderboard.NewService(store)
	authSvc := auth.NewService(pool, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL, store)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:        auth.NewHandler(authSvc),
		PortfolioHandler:   portfolio.NewHandler(store),
		TradingHandler:     trading.NewHandler(tradingSvc),
		PricingHandler:     pricing.NewHandler(oracle),
		LeaderboardHandler: leaderboard.NewHandler(leaderboardSvc),
		LiquidationHandler: liquidation.NewHandler(sweeper),
		HealthHandler:      health.NewHandler(pool, time.Now()),
		AuthService:        authSvc,
		InternalToken:      cfg.InternalToken,
		PriceStream:        pricing.NewStreamWS(cfg.WebSocketOrigin, cfg.StreamInterval, oracle),
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go sweeper.Run(ctx)

	log.WithField("addr", cfg.HTTPAddr).Info("server listening")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paperperps/internal/auth"
	"paperperps/internal/health"
	"paperperps/internal/httputil"
	"paperperps/internal/leaderboard"
	"paperperps/internal/liquidation"
	"paperperps/internal/portfolio"
	"paperperps/internal/pricing"
	"paperperps/internal/trading"
)

type RouterDeps struct {
	AuthHandler        *auth.Handler
	PortfolioHandler   *portfolio.Handler
	TradingHandler     *trading.Handler
	PricingHandler     *pricing.Handler
	LeaderboardHandler *leaderboard.Handler
	LiquidationHandler *liquidation.Handler
	HealthHandler      *health.Handler
	AuthService        *auth.Service
	InternalToken      string
	PriceStream        http.Handler
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS for development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", d.HealthHandler.Ready)
	r.Get("/health/live", d.HealthHandler.Live)
	r.With(InternalAuth(d.InternalToken)).Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})
		r.Get("/prices", d.PricingHandler.Price)
		r.Get("/prices/ws", d.PriceStream.ServeHTTP)
		r.Get("/leaderboard", d.LeaderboardHandler.Top)
		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Get("/me", withUser(d.AuthHandler.Me))
			r.Get("/portfolio", withUser(d.PortfolioHandler.Get))
			r.Post("/portfolio/reset", withUser(d.PortfolioHandler.Reset))
			r.Post("/positions", withUser(d.TradingHandler.Open))
			r.Get("/positions/open", withUser(d.TradingHandler.OpenPositions))
			r.Get("/positions/closed", withUser(d.TradingHandler.ClosedPositions))
			r.Post("/positions/{id}/close", func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserID(r)
				if !ok {
					httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
					return
				}
				d.TradingHandler.Close(w, r, userID, chi.URLParam(r, "id"))
			})
		})
		r.Group(func(r chi.Router) {
			r.Use(InternalAuth(d.InternalToken))
			r.Post("/internal/liquidation", d.LiquidationHandler.Run)
		})
	})
	return r
}

func withUser(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, userID)
	}
}

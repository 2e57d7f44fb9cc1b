package trading

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"paperperps/internal/httputil"
	"paperperps/internal/portfolio"
	"paperperps/internal/pricing"
	"paperperps/internal/types"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type openRequest struct {
	Symbol   string `json:"symbol"`
	Margin   string `json:"margin"`
	IsLong   bool   `json:"is_long"`
	Leverage int    `json:"leverage"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request, userID string) {
	var req openRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	margin, err := decimal.NewFromString(req.Margin)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid margin"})
		return
	}
	res, err := h.svc.Open(r.Context(), OpenRequest{
		UserID:   userID,
		Symbol:   types.Symbol(strings.ToUpper(strings.TrimSpace(req.Symbol))),
		Margin:   margin,
		IsLong:   req.IsLong,
		Leverage: req.Leverage,
	})
	if err != nil {
		writeTradeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request, userID, positionID string) {
	if positionID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "position id is required"})
		return
	}
	res, err := h.svc.Close(r.Context(), userID, positionID)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) OpenPositions(w http.ResponseWriter, r *http.Request, userID string) {
	balance, positions, err := h.svc.OpenPositions(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"balance": balance, "positions": positions})
}

func (h *Handler) ClosedPositions(w http.ResponseWriter, r *http.Request, userID string) {
	_, positions, err := h.svc.ClosedPositions(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func writeTradeError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr), errors.Is(err, ErrUnsupportedSymbol), errors.Is(err, portfolio.ErrInsufficientBalance):
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, portfolio.ErrNotFound), errors.Is(err, portfolio.ErrPositionNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, pricing.ErrPriceUnavailable):
		httputil.WriteJSON(w, http.StatusBadGateway, httputil.ErrorResponse{Error: "unable to fetch mark price"})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
	}
}

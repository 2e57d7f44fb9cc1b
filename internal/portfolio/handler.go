package portfolio

import (
	"errors"
	"net/http"

	"paperperps/internal/httputil"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Get returns the user's balance and positions, creating the portfolio with
// the starting balance on first read.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := h.store.Ensure(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if p.Positions == nil {
		p.Positions = []Position{}
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// Reset restores the starting balance and wipes all positions.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := h.store.Reset(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if p.Positions == nil {
		p.Positions = []Position{}
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

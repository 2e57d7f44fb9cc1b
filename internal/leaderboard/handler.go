package leaderboard

import (
	"net/http"

	"paperperps/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Top(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Top(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"portfolios": entries})
}

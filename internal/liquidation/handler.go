package liquidation

import (
	"net/http"

	"paperperps/internal/httputil"
)

type Handler struct {
	sweeper *Sweeper
}

func NewHandler(sweeper *Sweeper) *Handler {
	return &Handler{sweeper: sweeper}
}

// Run triggers one sweep. Exposed on the internal surface so an external
// scheduler can drive liquidation in addition to the built-in ticker.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

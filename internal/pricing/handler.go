package pricing

import (
	"errors"
	"net/http"
	"strings"

	"paperperps/internal/httputil"
	"paperperps/internal/types"
)

type Handler struct {
	src Source
}

func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

// Price returns the current mark price for one supported symbol.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if raw == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "missing symbol query param"})
		return
	}
	symbol := types.Symbol(raw)
	if !symbol.Supported() {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "unsupported symbol"})
		return
	}
	price, err := h.src.MarkPrice(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, ErrPriceUnavailable) {
			httputil.WriteJSON(w, http.StatusBadGateway, httputil.ErrorResponse{Error: "failed to fetch price"})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"symbol": raw, "price": price.String()})
}

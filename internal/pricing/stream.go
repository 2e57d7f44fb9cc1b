package pricing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"paperperps/internal/types"
)

type priceMessage struct {
	Type      string            `json:"type"`
	Prices    map[string]string `json:"prices"`
	Timestamp int64             `json:"ts"`
}

// StreamWS pushes mark prices for every supported symbol on an interval.
type StreamWS struct {
	origin   string
	interval time.Duration
	src      Source
	upgrader websocket.Upgrader
}

func NewStreamWS(origin string, interval time.Duration, src Source) *StreamWS {
	return &StreamWS{
		origin:   origin,
		interval: interval,
		src:      src,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) }},
	}
}

func (h *StreamWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case <-ticker.C:
			marks := FetchAll(r.Context(), h.src, types.Symbols())
			if len(marks) == 0 {
				continue
			}
			prices := make(map[string]string, len(marks))
			for symbol, price := range marks {
				prices[string(symbol)] = price.String()
			}
			msg := priceMessage{Type: "prices", Prices: prices, Timestamp: time.Now().UTC().Unix()}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	return strings.EqualFold(r.Header.Get("Origin"), origin)
}

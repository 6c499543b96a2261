package livesync

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// Handler upgrades display connections and streams change signals for the
// player named by the {player_id} route parameter.
type Handler struct {
	bus          *Bus
	log          *slog.Logger
	pingInterval time.Duration
}

// NewHandler returns a Handler. A non-positive pingInterval disables pings.
func NewHandler(bus *Bus, log *slog.Logger, pingInterval time.Duration) *Handler {
	return &Handler{bus: bus, log: log, pingInterval: pingInterval}
}

// ServeHTTP handles GET /ws/players/{player_id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "player_id")
	if playerID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Debug("websocket accept failed", slog.String("player_id", playerID), slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	sub := h.bus.Subscribe(playerID)
	defer sub.Close()

	h.log.Info("display subscribed", slog.String("player_id", playerID))
	defer h.log.Info("display unsubscribed", slog.String("player_id", playerID))

	// Displays never send; CloseRead drains control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	var ping <-chan time.Time
	if h.pingInterval > 0 {
		t := time.NewTicker(h.pingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case signal, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeSignal(ctx, conn, signal); err != nil {
				h.log.Debug("signal write failed", slog.String("player_id", playerID), slog.String("error", err.Error()))
				return
			}
		case <-ping:
			pctx, cancel := context.WithTimeout(ctx, h.pingInterval)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeSignal(ctx context.Context, conn *websocket.Conn, signal string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, []byte(signal))
}

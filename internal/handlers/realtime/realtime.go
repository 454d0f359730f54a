// Package realtime relays a user's wallet and order events over a websocket.
package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/notify"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
	"github.com/GlebRadaev/boostmarket/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Subscriber interface {
	Subscribe(ctx context.Context, userID int) (*notify.Subscription, error)
}

type RealtimeHandler struct {
	broker   Subscriber
	upgrader websocket.Upgrader
}

func New(broker Subscriber) *RealtimeHandler {
	return &RealtimeHandler{
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth is the JWT checked by the middleware, not the origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect godoc
//
//	@Summary		Subscribe to wallet and order events
//	@Description	Upgrades to a websocket. Browsers may pass the JWT as the "token" query parameter.
//	@Tags			Realtime
//	@Security		BearerAuth
//	@Param			token	query	string	false	"JWT for clients that cannot set headers"
//	@Success		101
//	@Failure		401	{object}	utils.Response	"Unauthorized"
//	@Router			/api/user/ws [get]
func (h *RealtimeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := auth.FromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, err := h.broker.Subscribe(ctx, userID)
	if err != nil {
		zap.L().Error("can't subscribe to realtime events", zap.Int("user_id", userID), zap.Error(err))
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Realtime channel unavailable")
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		zap.L().Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	zap.L().Debug("realtime client connected", zap.Int("user_id", userID))
	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, sub, done)
	zap.L().Debug("realtime client disconnected", zap.Int("user_id", userID))
}

// readPump discards client frames and closes done once the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub *notify.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "channel closed"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

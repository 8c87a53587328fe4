package handler

import (
	"net/http"
	"time"

	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/service/websocket"
	"trafficanalyzer/internal/session"

	gorilla "github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket for same-origin pages.
var Upgrader = gorilla.Upgrader{}

// StateWebsocketHandler handles GET /api/ws. The connection receives the
// session's state changes and failure alerts, starting with the current
// state. Each pong keeps the session from being swept.
func StateWebsocketHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		connection.SetReadDeadline(time.Now().Add(websocket.PongWait))
		connection.SetPongHandler(func(string) error {
			sess.Controller.Touch()
			return connection.SetReadDeadline(time.Now().Add(websocket.PongWait))
		})

		hub.Register(connection, sess.ID)
		defer hub.Unregister(connection)

		snap := sess.Controller.Snapshot()
		hub.Publish(sess.ID, lifecycle.Event{Type: lifecycle.EventState, State: &snap})

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}

package handler

import (
	"net/http"

	"roadscan/internal/logger"
	"roadscan/internal/service"

	"github.com/gorilla/websocket"
)

// viewerReadLimit bounds messages from detection viewers, which only send
// control frames.
const viewerReadLimit = 512

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveSocketHandler runs the metadata/image detection protocol on /ws.
func LiveSocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		manager.GetLiveHandler().Serve(r.Context(), connection)
	}
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the HubService to receive every stream batch.
func ViewWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		connection.SetReadLimit(viewerReadLimit)
		manager.GetWebsocketService().Register(connection)
		defer manager.GetWebsocketService().Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Info("Viewer disconnected: %v", err)
				}
				break
			}
		}
	}
}

package handler

import (
	"net/http"

	"malariascope/internal/logger"
	"malariascope/internal/service/websocket"

	gws "github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket. The default origin check
// only admits pages served by this host.
var Upgrader = gws.Upgrader{}

// EventsWebsocketHandler registers the page of an authenticated user with the
// hub so it receives the status of that user's runs.
func EventsWebsocketHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection, sess.User)
		defer hub.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
					logger.Info("Viewer %s disconnected normally", sess.User)
				} else {
					logger.Warning("Viewer %s disconnected: %v", sess.User, err)
				}
				break
			}
		}
	}
}

// HealthcheckHandler reports that the server is up.
func HealthcheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

// This file implements the Event WS endpoint (§4.D): authenticates,
// upgrades, creates a Socket, registers it with the Service, and applies
// the client sub/unsub protocol for the lifetime of the connection.
package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/emberhall/ember/internal/auth"
	"github.com/emberhall/ember/internal/logger"
	"github.com/emberhall/ember/internal/nanoid"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientFrame is the shape of both "sub" and "unsub" client->server frames
// (§4.D, §6). Malformed JSON or unknown topic types are dropped silently so
// a client can't probe topic existence by observing error responses.
type clientFrame struct {
	Type   string  `json:"type"`
	Topics []Topic `json:"topics"`
}

// Handler serves the /events/ws endpoint. Authentication has already run as
// gin middleware (the access token arrives via ?auth=, §4.D) by the time
// ServeHTTP is reached; the authenticated user id is read from context.
func Handler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Realtime().Debug().Err(err).Msg("event ws upgrade failed")
			return
		}

		socketID := nanoid.MustGenerate(21)

		var socket *Socket
		socket = NewSocket(socketID, conn,
			func(s *Socket, data []byte) { handleClientFrame(service, s, data) },
			func(s *Socket, reason DisconnectReason) {
				service.RemoveSocket(userID, s.ID)
				logger.Realtime().Debug().
					Str("socket_id", s.ID).
					Str("user_id", userID).
					Str("reason", string(reason)).
					Msg("event socket disconnected")
			},
		)

		service.AddSocket(userID, socket)
	}
}

func handleClientFrame(service *Service, socket *Socket, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	switch frame.Type {
	case "sub":
		for _, t := range frame.Topics {
			if t.Valid() {
				_ = service.Subscribe(socket.ID, t)
			}
		}
	case "unsub":
		for _, t := range frame.Topics {
			if t.Valid() {
				_ = service.Unsubscribe(socket.ID, t)
			}
		}
	}
}

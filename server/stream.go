package server

import (
	"net/http"
	"time"

	. "github.com/AshBuk/pic-share/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteTimeout = 10 * time.Second

	// Pings keep intermediaries from reaping an idle feed connection.
	streamPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The gateway serves a single trusted viewer, cross-origin checks happen
	// at the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamFeed upgrades to a WebSocket and pushes a snapshot after every cache
// commit. Each connection gets its own subscription channel; the subscription
// is torn down when the connection's context ends.
func (s *FeedServer) StreamFeed(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		Log.Error("fail to upgrade feed stream: ", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	snapshots := s.Feed.Controller.Subscribe(ctx)

	// Reader loop only to observe the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

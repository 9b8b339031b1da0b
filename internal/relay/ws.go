package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPingInterval is the heartbeat period when none is configured.
const DefaultPingInterval = 30 * time.Second

const writeWait = 10 * time.Second

// Upgrader accepts WebSocket handshakes from any origin; callers
// authenticate before upgrading.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// WSConn adapts a gorilla WebSocket to Conn. Writes are serialized.
type WSConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// NewWSConn wraps ws.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

func (c *WSConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a ping control frame.
func (c *WSConn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *WSConn) Close() error {
	return c.ws.Close()
}

// Serve registers ws with hub under project and keeps it alive until the
// peer goes away. A ping is sent every interval; the socket is closed when
// no pong (or other frame) arrives within twice the interval. Serve blocks
// until the connection is closed.
func Serve(ws *websocket.Conn, hub *Hub, project string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	conn := NewWSConn(ws)
	unsubscribe := hub.Subscribe(project, conn)
	defer func() {
		unsubscribe()
		conn.Close()
	}()

	deadline := func() error {
		return ws.SetReadDeadline(time.Now().Add(2 * interval))
	}
	deadline()
	ws.SetPongHandler(func(string) error {
		return deadline()
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.Ping(); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	// Observers only listen, but reading drives the pong handler and
	// surfaces disconnects.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			hub.logger.Debug("observer disconnected", "project", project, "error", err)
			return
		}
		deadline()
	}
}

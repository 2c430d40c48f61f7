package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/foxseedlab/livescribe/internal/channel"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

type Conn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func NewConn(ws *websocket.Conn, maxMessageBytes int64) *Conn {
	ws.SetReadLimit(maxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Conn{ws: ws}
}

func (c *Conn) Receive() (channel.Message, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return channel.Message{}, fmt.Errorf("%w: %w", channel.ErrClosed, err)
		}
		// Any inbound traffic proves the peer is alive.
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		switch mt {
		case websocket.BinaryMessage:
			return channel.Message{Type: channel.Binary, Data: data}, nil
		case websocket.TextMessage:
			return channel.Message{Type: channel.Text, Data: data}, nil
		}
	}
}

func (c *Conn) WriteText(data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close sends a normal close frame and releases the socket, unblocking a
// pending Receive.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

package server

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Fekinox/xo-grid/pkg/message"
)

var (
	ErrClientClosed   = errors.New("Client connection is closed")
	ErrSendBufferFull = errors.New("Client send buffer is full")
)

// HandlerFunc handles one text command. body is everything after the command
// word, trimmed.
type HandlerFunc func(username, body string)

type ClientConn struct {
	conn     *websocket.Conn
	server   *SocketServer
	Username string

	outbound  chan message.Message
	done      chan struct{}
	closeOnce sync.Once

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc
}

func newClientConn(s *SocketServer, conn *websocket.Conn, username string) *ClientConn {
	return &ClientConn{
		conn:     conn,
		server:   s,
		Username: username,
		outbound: make(chan message.Message, SEND_BUFFER_SIZE),
		done:     make(chan struct{}),
		handlers: make(map[string]HandlerFunc),
	}
}

// On registers h for messages whose first word is command.
func (c *ClientConn) On(command string, h HandlerFunc) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.handlers[strings.ToLower(command)] = h
}

func (c *ClientConn) dispatch(data []byte) {
	cmd, body, _ := strings.Cut(strings.TrimSpace(string(data)), " ")
	if cmd == "" {
		return
	}
	cmd = strings.ToLower(cmd)

	c.handlersMu.RLock()
	h, ok := c.handlers[cmd]
	c.handlersMu.RUnlock()

	if !ok {
		c.WriteTextMessage(fmt.Sprintf("Unknown command %q", cmd))
		return
	}
	h(c.Username, strings.TrimSpace(body))
}

// Close stops the write pump, which sends a close frame and tears down the
// underlying connection.
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Reader pump. Dispatches text messages to the registered handlers until the
// connection fails, then unregisters the client.
func (c *ClientConn) readPump() {
	defer func() {
		c.Close()
		c.server.queueUnregister(c)
	}()

	c.conn.SetReadLimit(MAX_MESSAGE_SIZE)
	c.conn.SetReadDeadline(time.Now().Add(PONG_WAIT_TIME))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PONG_WAIT_TIME))
		return nil
	})

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("%s: %v", c.Username, err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		c.dispatch(data)
	}
}

// Writer pump. Forwards queued messages to the connection and keeps it alive
// with pings. Halts once the connection fails or the client is closed.
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(PING_PERIOD)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT_TIME))
			if err := c.conn.WriteMessage(msg.Type, msg.Data); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT_TIME))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "goodbye"),
				time.Now().Add(WRITE_WAIT_TIME),
			)
			return
		}
	}
}

func (c *ClientConn) WriteTextMessage(data string) error {
	return c.WriteMessage(websocket.TextMessage, []byte(data))
}

// WriteMessage queues a message without blocking.
func (c *ClientConn) WriteMessage(typ int, data []byte) error {
	msg := message.Message{
		Type: typ,
		Data: data,
	}

	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.outbound <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Fekinox/xo-grid/pkg/message"
)

var (
	ErrTooManyReconnectAttempts = errors.New("Too many reconnection attempts")
	ErrQuit                     = errors.New("Client quit")
	ErrBadRequest               = errors.New("Bad request")
	ErrServerError              = errors.New("Server error")
)

type ConnectionState int

const (
	MAX_BACKOFF_TIME_MS      = 5 * 1000
	INIT_BACKOFF_TIME_MS     = 250
	BACKOFF_TIME_MULT_FACTOR = 2
	RANDOM_BACKOFF_MAX       = 1000
	MAX_RETRY_ATTEMPTS       = 20
	WRITE_WAIT_TIME          = 5 * time.Second
	MESSAGE_BUFFER_SIZE      = 256
)

const (
	Disconnected ConnectionState = iota
	Connected
	ClientQuit
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case ClientQuit:
		return "quit"
	default:
		return "disconnected"
	}
}

// Client keeps a websocket session to the game server alive, reconnecting
// with exponential backoff when the connection drops.
type Client struct {
	Host     string
	Username string

	// OnStateChange, if set, is called from Run's goroutine.
	OnStateChange func(ConnectionState)

	conn *websocket.Conn

	state   ConnectionState
	stateMu sync.Mutex

	inbound  chan message.Message
	outbound chan message.Message
	done     chan struct{}
}

func NewClient(host string, port int, username string) *Client {
	return &Client{
		Host:     fmt.Sprintf("%s:%d", host, port),
		Username: username,

		inbound:  make(chan message.Message, MESSAGE_BUFFER_SIZE),
		outbound: make(chan message.Message, MESSAGE_BUFFER_SIZE),
		done:     make(chan struct{}),
	}
}

// Run connects and serves the connection until ctx is cancelled or the
// server refuses the client. Inbound is closed when Run returns.
func (c *Client) Run(ctx context.Context) error {
	defer func() {
		log.Println("client loop done")
		close(c.inbound)
		close(c.done)
	}()

	for {
		if err := c.ensureConnected(ctx); err != nil {
			return err
		}

		err := c.serve(ctx)
		if ctx.Err() != nil {
			c.setState(ClientQuit)
			return ErrQuit
		}

		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
			c.setState(ClientQuit)
			return fmt.Errorf("%w: %s", ErrBadRequest, closeErr.Text)
		}

		log.Println("connection lost:", err)
		c.setState(Disconnected)
	}
}

// serve pumps messages both ways over the current connection and returns the
// error that ended it.
func (c *Client) serve(ctx context.Context) error {
	conn := c.conn
	errc := make(chan error, 1)
	stop := make(chan struct{})
	readerDone := make(chan struct{})

	// The reader must be gone before Run can close inbound.
	defer func() {
		close(stop)
		conn.Close()
		<-readerDone
	}()

	go func() {
		defer close(readerDone)
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				errc <- err
				return
			}
			select {
			case c.inbound <- message.Message{Type: typ, Data: data}:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case msg := <-c.outbound:
			conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT_TIME))
			if err := conn.WriteMessage(msg.Type, msg.Data); err != nil {
				return err
			}

		case err := <-errc:
			return err

		case <-ctx.Done():
			err := conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
				time.Now().Add(WRITE_WAIT_TIME),
			)
			if err != nil {
				log.Println("write close:", err)
			}
			return ctx.Err()
		}
	}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	var err error
	var retryTime = INIT_BACKOFF_TIME_MS

	for i := 0; i < MAX_RETRY_ATTEMPTS; i++ {
		err = c.connect(ctx)
		if err == nil {
			log.Println("connected")
			c.setState(Connected)
			return nil
		}
		if errors.Is(err, ErrBadRequest) {
			log.Println("client error")
			c.setState(ClientQuit)
			return err
		}

		randomTime := rand.Intn(RANDOM_BACKOFF_MAX)
		log.Println("reconnecting...", retryTime)
		select {
		case <-time.After(time.Duration(retryTime+randomTime) * time.Millisecond):
			retryTime = min(MAX_BACKOFF_TIME_MS, retryTime*BACKOFF_TIME_MULT_FACTOR)
		case <-ctx.Done():
			c.setState(ClientQuit)
			return ErrQuit
		}
	}
	return fmt.Errorf("%w: %v", ErrTooManyReconnectAttempts, err)
}

func (c *Client) connect(ctx context.Context) error {
	// Ask the server for a connection token
	var buf bytes.Buffer
	err := json.NewEncoder(&buf).Encode(map[string]any{
		"username": c.Username,
	})
	if err != nil {
		return err
	}

	tokenUrl := url.URL{
		Scheme: "http",
		Host:   c.Host,
		Path:   "/create-token",
	}

	req, err := http.NewRequestWithContext(ctx, "POST", tokenUrl.String(), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if resp.StatusCode < 500 {
			return fmt.Errorf("%w: %s", ErrBadRequest, resp.Status)
		}
		return ErrServerError
	}

	var token struct {
		Token string `json:"token" required:"true"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return err
	}

	// Connect to the server with the token
	u := url.URL{
		Scheme: "ws",
		Host:   c.Host,
		Path:   "/ws",
	}
	q := u.Query()
	q.Set("token", token.Token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *Client) setState(s ConnectionState) {
	c.stateMu.Lock()
	changed := c.state != s
	c.state = s
	c.stateMu.Unlock()

	if changed && c.OnStateChange != nil {
		c.OnStateChange(s)
	}
}

func (c *Client) State() ConnectionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	return c.state
}

// Send queues a text command. Messages queued while disconnected go out once
// the connection is back.
func (c *Client) Send(text string) error {
	select {
	case <-c.done:
		return ErrQuit
	default:
	}

	select {
	case c.outbound <- message.Message{Type: websocket.TextMessage, Data: []byte(text)}:
		return nil
	case <-c.done:
		return ErrQuit
	}
}

// Inbound delivers every message received from the server.
func (c *Client) Inbound() <-chan message.Message {
	return c.inbound
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

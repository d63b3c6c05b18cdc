package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
)

const (
	WRITE_WAIT_TIME    = 2 * time.Second
	PONG_WAIT_TIME     = 60 * time.Second
	PING_PERIOD        = (PONG_WAIT_TIME * 9) / 10
	TOKEN_PRUNE_PERIOD = time.Minute
	MAX_MESSAGE_SIZE   = 4096
	SEND_BUFFER_SIZE   = 256
	MAX_USERNAME_LEN   = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SocketServer tracks connected clients by username. Registration and
// removal are serialized through Run.
type SocketServer struct {
	TokenManager *TokenManager

	shutdown    chan struct{}
	hasShutdown chan struct{}
	sdOnce      sync.Once

	clients   map[string]*ClientConn
	clientsMu sync.Mutex

	register   chan *ClientConn
	unregister chan *ClientConn

	onConnect    func(*ClientConn)
	onDisconnect func(*ClientConn)
}

func NewSocketServer(tm *TokenManager) *SocketServer {
	return &SocketServer{
		TokenManager: tm,
		shutdown:     make(chan struct{}),
		hasShutdown:  make(chan struct{}),

		clients: make(map[string]*ClientConn),

		register:   make(chan *ClientConn),
		unregister: make(chan *ClientConn),
	}
}

// SetConnectHandler must be called before Run. The handler runs before the
// client's pumps start, so it is the place to register commands.
func (s *SocketServer) SetConnectHandler(f func(*ClientConn)) {
	s.onConnect = f
}

func (s *SocketServer) SetDisconnectHandler(f func(*ClientConn)) {
	s.onDisconnect = f
}

func (s *SocketServer) Run() {
	prune := time.NewTicker(TOKEN_PRUNE_PERIOD)
	defer prune.Stop()

outer:
	for {
		select {
		case cl := <-s.register:
			s.registerClient(cl)

		case cl := <-s.unregister:
			s.unregisterClient(cl)

		case <-prune.C:
			if n := s.TokenManager.PruneTokens(); n > 0 {
				log.Printf("Pruned %d expired tokens", n)
			}

		case <-s.shutdown:
			s.doShutdown()
			break outer
		}
	}
	log.Println("main loop done")
	close(s.hasShutdown)
}

func (s *SocketServer) Shutdown() {
	s.sdOnce.Do(func() {
		close(s.shutdown)
		<-s.hasShutdown
	})
}

func (s *SocketServer) registerClient(cl *ClientConn) {
	err := func() error {
		s.clientsMu.Lock()
		defer s.clientsMu.Unlock()

		if _, ok := s.clients[cl.Username]; ok {
			return fmt.Errorf("user %s is already connected", cl.Username)
		}
		s.clients[cl.Username] = cl
		log.Println("Registered new client", cl.Username, len(s.clients))
		return nil
	}()
	if err != nil {
		log.Println(err)
		cl.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(WRITE_WAIT_TIME),
		)
		cl.conn.Close()
		return
	}

	if s.onConnect != nil {
		s.onConnect(cl)
	}

	go cl.readPump()
	go cl.writePump()

	if err := cl.WriteTextMessage(fmt.Sprintf("hello %s", cl.Username)); err != nil {
		log.Println(err)
	}
}

func (s *SocketServer) unregisterClient(cl *ClientConn) {
	removed := func() bool {
		s.clientsMu.Lock()
		defer s.clientsMu.Unlock()

		if cur, ok := s.clients[cl.Username]; !ok || cur != cl {
			return false
		}
		delete(s.clients, cl.Username)
		return true
	}()
	if !removed {
		return
	}

	log.Println("Unregistered client", cl.Username)
	if s.onDisconnect != nil {
		s.onDisconnect(cl)
	}
}

func (s *SocketServer) queueUnregister(cl *ClientConn) {
	select {
	case s.unregister <- cl:
	case <-s.shutdown:
	}
}

func (s *SocketServer) doShutdown() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for name, cl := range s.clients {
		log.Println("closing", name)
		cl.Close()
	}
}

// BroadcastText sends text to each named user that is connected.
func (s *SocketServer) BroadcastText(text string, users ...string) {
	s.broadcast(websocket.TextMessage, []byte(text), users)
}

// BroadcastJSON encodes v once and sends it as a text message.
func (s *SocketServer) BroadcastJSON(v any, users ...string) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Println("broadcast:", err)
		return
	}
	s.broadcast(websocket.TextMessage, data, users)
}

func (s *SocketServer) broadcast(typ int, data []byte, users []string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for _, u := range users {
		cl, ok := s.clients[u]
		if !ok {
			continue
		}
		if err := cl.WriteMessage(typ, data); err != nil {
			log.Printf("%s: %v", u, err)
		}
	}
}

// Initiates a new WebSocket connection.
//
// Query parameters:
//
// * `token`: Authentication token received from the backend. If not present or invalid,
// rejects with a 400 error.
func (s *SocketServer) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	payload, err := s.TokenManager.ValidateToken(token)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	cl := newClientConn(s, conn, payload.Username)
	select {
	case s.register <- cl:
	case <-s.shutdown:
		conn.Close()
	}
}

// Creates a token for use in initiating a WebSocket connection. Clients are expected to
// handshake by requesting a token from the backend and then using that token to initiate a
// connection.
func (s *SocketServer) CreateToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username" required:"true"`
	}

	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || !validUsername(body.Username) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	taken := func() bool {
		s.clientsMu.Lock()
		defer s.clientsMu.Unlock()

		_, ok := s.clients[body.Username]
		return ok
	}()
	if taken {
		w.WriteHeader(http.StatusConflict)
		return
	}

	token, err := s.TokenManager.GenerateToken(body.Username)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"token": token,
	})
}

// Usernames appear inside space-separated commands, so they cannot contain
// whitespace.
func validUsername(name string) bool {
	return name != "" && len(name) <= MAX_USERNAME_LEN &&
		!strings.ContainsFunc(name, unicode.IsSpace)
}

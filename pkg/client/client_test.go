package client

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fekinox/xo-grid/pkg/game"
	"github.com/Fekinox/xo-grid/pkg/server"
)

func startServer(t *testing.T) int {
	t.Helper()

	ws := server.NewSocketServer(server.NewTokenManager(time.Minute))
	gm := server.NewGameManager(ws, game.Modes[0], 3, rand.New(rand.NewSource(1)))
	ws.SetConnectHandler(func(cl *server.ClientConn) {
		server.BindCommands(cl, gm)
	})
	go ws.Run()

	srv := httptest.NewServer(server.NewRouter(ws, []string{"*"}))
	t.Cleanup(func() {
		ws.Shutdown()
		srv.Close()
	})
	return srv.Listener.Addr().(*net.TCPAddr).Port
}

func waitFor(t *testing.T, c *Client, prefix string) string {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-c.Inbound():
			require.True(t, ok, "inbound closed while waiting for %q", prefix)
			if s := string(msg.Data); strings.HasPrefix(s, prefix) {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", prefix)
			return ""
		}
	}
}

func TestClientRoundTrip(t *testing.T) {
	port := startServer(t)

	c := NewClient("127.0.0.1", port, "alice")
	var states []ConnectionState
	c.OnStateChange = func(s ConnectionState) {
		states = append(states, s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	waitFor(t, c, "hello alice")
	require.NoError(t, c.Send("ping there"))
	assert.Equal(t, `pong: "there"`, waitFor(t, c, "pong"))

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrQuit)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}

	assert.Equal(t, []ConnectionState{Connected, ClientQuit}, states)
	assert.ErrorIs(t, c.Send("ping"), ErrQuit)
}

func TestClientRejectedUsername(t *testing.T) {
	port := startServer(t)

	c := NewClient("127.0.0.1", port, "two words")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Run(ctx)
	assert.True(t, errors.Is(err, ErrBadRequest), "got %v", err)
	assert.Equal(t, ClientQuit, c.State())
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fekinox/xo-grid/pkg/config"
	"github.com/Fekinox/xo-grid/pkg/server"
)

var addr = flag.String("addr", "", "listen address (overrides XO_ADDR)")

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	ws := server.NewSocketServer(server.NewTokenManager(cfg.TokenTTL))
	gm := server.NewGameManager(ws, cfg.DefaultMode, cfg.DefaultWinLength,
		rand.New(rand.NewSource(time.Now().UnixNano())))

	ws.SetConnectHandler(func(cl *server.ClientConn) {
		server.BindCommands(cl, gm)
	})

	ws.SetDisconnectHandler(func(cl *server.ClientConn) {
		gm.DropUser(cl.Username)
	})

	go ws.Run()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.NewRouter(ws, cfg.AllowedOrigins),
	}

	go func() {
		log.Printf("listening on %s (default mode %s, %d in a row)",
			cfg.Addr, cfg.DefaultMode.Name, cfg.DefaultWinLength)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
		log.Println("server done")
	}()

	// Wait for interrupt to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down...")
	ws.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Forced to shutdown: ", err)
	}

	fmt.Println("Successfully exited")
}

package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huddle-chat/huddle-server/internal/server"
	"github.com/huddle-chat/huddle-server/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Println("Starting Huddle chat server...")

	cfg := server.NewConfigFromEnv()
	st := store.New()
	srv := server.New(cfg, st)

	srv.StartHub()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received signal %s, shutting down...", sig)
		if err := srv.Shutdown(shutdownTimeout); err != nil {
			log.Printf("Shutdown finished with error: %v", err)
			os.Exit(1)
		}
	}
}

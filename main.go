package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screenlens/config"
	"screenlens/database"
	"screenlens/handlers"
	"screenlens/services"
)

func main() {
	cfg := config.Load()

	db := database.Connect(cfg)
	database.Migrate(db)

	provider := services.NewClaudeService(cfg.ClaudeBin, cfg.DefaultModel)

	r := handlers.Router(cfg, db, provider)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		fmt.Printf("Server starting on :%s\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received %s. Shutting down gracefully...", sig)

	// Force-exit backstop if graceful close stalls on a hung stream.
	forceTimer := time.AfterFunc(cfg.ShutdownForce, func() {
		log.Println("Forced shutdown after timeout")
		os.Exit(1)
	})
	defer forceTimer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Graceful shutdown timed out, closing sockets: %v", err)
		srv.Close()
	}

	log.Println("Server closed")
}

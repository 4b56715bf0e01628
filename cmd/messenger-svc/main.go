package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"carematch/internal/wire"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	app, err := wire.InitializeApplication()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer func() { _ = app.Log.Sync() }()

	addr := app.Config.Server.Host + ":" + app.Config.Server.Port
	server := &http.Server{
		Addr:        addr,
		Handler:     app.Router,
		ReadTimeout: time.Duration(app.Config.Server.ReadTimeout) * time.Second,
		// the sync stream stays open indefinitely, so no write timeout
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		app.Log.Info("messenger service listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		app.Log.Warn("graceful shutdown incomplete", zap.Error(err))
	}
	if err := app.Redis.Close(); err != nil {
		app.Log.Warn("redis close failed", zap.Error(err))
	}
	app.Log.Info("server stopped")
}

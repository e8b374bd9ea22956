package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ms-payment-gateway/internal/admin"
	"ms-payment-gateway/internal/auth"
	"ms-payment-gateway/internal/config"
	"ms-payment-gateway/internal/logger"
	"ms-payment-gateway/internal/square"
)

// Standalone admin surface for merchants: gateway settings inspection and
// the Square connectivity probe. Runs separately from the storefront service
// so checkout traffic and admin traffic never share a port.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Square Gateway Admin Service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()

	squareClient := square.NewClient(cfg.Square, log)
	antiForgery := auth.NewAntiForgery(cfg.Auth.AntiForgeryKey)
	adminHandler := admin.NewHandler(squareClient, antiForgery, cfg.Auth.AdminRole, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/admin/api/v1")
	api.Use(admin.GinAuth(cfg.Auth.OIDCIssuer))
	{
		api.GET("/anti-forgery", adminHandler.GetAntiForgeryToken)
		api.POST("/square/test-connection", adminHandler.TestConnection)
	}
	log.Info("ROUTER", "Admin routes registered under /admin/api/v1")

	server := &http.Server{
		Addr:         cfg.Server.AdminPort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Admin Service running on %s", cfg.Server.AdminPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Admin Service shutdown complete")
	}
}

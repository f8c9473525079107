package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rosterbot/rosterbot/internal/backup"
	"github.com/rosterbot/rosterbot/internal/billing/stripeclient"
	"github.com/rosterbot/rosterbot/internal/carrier"
	"github.com/rosterbot/rosterbot/internal/database"
	"github.com/rosterbot/rosterbot/internal/email"
	"github.com/rosterbot/rosterbot/internal/genai"
	"github.com/rosterbot/rosterbot/internal/logging"
	"github.com/rosterbot/rosterbot/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("ROSTERBOT_LOG_LEVEL"), os.Getenv("ROSTERBOT_LOG_FORMAT"))

	port := os.Getenv("ROSTERBOT_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("ROSTERBOT_DB_PATH")
	if dbPath == "" {
		dbPath = "rosterbot.db"
	}

	baseURL := os.Getenv("ROSTERBOT_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	stripeClient := stripeclient.NewClient(stripeclient.Config{
		SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		ProductID:     os.Getenv("STRIPE_PRODUCT_ID"),
		SuccessURL:    baseURL + "/account?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     baseURL + "/pricing",
	})

	aiClient := genai.NewClient(os.Getenv("GEMINI_API_KEY"))

	carrierClient := carrier.NewClient(
		os.Getenv("CARRIER_ACCOUNT_SID"),
		os.Getenv("CARRIER_AUTH_TOKEN"),
		os.Getenv("CARRIER_FROM_NUMBER"),
	)

	emailClient := email.NewClient(os.Getenv("ROSTERBOT_POSTMARK_TOKEN"), os.Getenv("ROSTERBOT_FROM_EMAIL"))

	var allowedRegions []string
	if v := os.Getenv("ROSTERBOT_ALLOWED_REGIONS"); v != "" {
		allowedRegions = strings.Split(v, ",")
	}

	cfg := server.Config{
		Region:            os.Getenv("ROSTERBOT_REGION"),
		AllowedRegions:    allowedRegions,
		CarrierWebhookURL: baseURL + "/webhooks/carrier",
		VAPIDPublicKey:    os.Getenv("ROSTERBOT_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:   os.Getenv("ROSTERBOT_VAPID_PRIVATE_KEY"),
		PushSubscriber:    os.Getenv("ROSTERBOT_VAPID_SUBSCRIBER"),
	}

	srv := server.New(db, stripeClient, stripeClient, aiClient, carrierClient, emailClient, cfg, logger)

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("ROSTERBOT_S3_ENDPOINT"),
			Bucket:    os.Getenv("ROSTERBOT_S3_BUCKET"),
			Region:    os.Getenv("ROSTERBOT_S3_REGION"),
			AccessKey: os.Getenv("ROSTERBOT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("ROSTERBOT_S3_SECRET_KEY"),
		},
		DBPath: dbPath,
	}, db, logger.With("component", "backup"))
	backupMgr.Start(context.Background())
	defer backupMgr.Stop()

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("rosterbot starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rosterbot/rosterbot/internal/billing"
	"github.com/rosterbot/rosterbot/internal/carrier"
	"github.com/rosterbot/rosterbot/internal/email"
	"github.com/rosterbot/rosterbot/internal/genai"
	"github.com/rosterbot/rosterbot/internal/handler"
	"github.com/rosterbot/rosterbot/internal/middleware"
	"github.com/rosterbot/rosterbot/internal/notify"
	"github.com/rosterbot/rosterbot/internal/push"
	"github.com/rosterbot/rosterbot/internal/store"
	ws "github.com/rosterbot/rosterbot/internal/websocket"
)

// Config carries the server's non-dependency settings.
type Config struct {
	// Region is where this deployment runs; AllowedRegions is where it is
	// expected to run. A mismatch logs a warning on every message request.
	Region         string
	AllowedRegions []string

	// CarrierWebhookURL is the public URL the carrier signs inbound
	// webhooks against.
	CarrierWebhookURL string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string
}

type Server struct {
	db  *sql.DB
	hub *ws.Hub

	webhookH      *handler.WebhookHandler
	subscriptionH *handler.SubscriptionHandler
	messageH      *handler.MessageHandler
	inboundH      *handler.InboundHandler
	authH         *handler.AuthHandler
	alertH        *handler.AlertHandler
	scheduleH     *handler.ScheduleHandler
	pushH         *handler.PushHandler

	userStore    *store.UserStore
	sessionStore *store.SessionStore
	managerStore *store.ManagerStore
	rateLimiter  *middleware.RateLimiter

	complianceCfg middleware.ComplianceConfig
	logger        *slog.Logger
}

func New(
	db *sql.DB,
	provider billing.Provider,
	verifier handler.WebhookVerifier,
	aiClient *genai.Client,
	carrierClient *carrier.Client,
	emailClient *email.Client,
	cfg Config,
	logger *slog.Logger,
) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	teamStore := store.NewTeamStore(db)
	userStore := store.NewUserStore(db)
	eventStore := store.NewProcessedEventStore(db)
	revenueStore := store.NewRevenueStore(db)
	alertStore := store.NewAlertStore(db)
	managerStore := store.NewManagerStore(db)
	sessionStore := store.NewSessionStore(db)
	scheduleStore := store.NewScheduleStore(db)
	pushStore := store.NewPushStore(db)

	var pushSvc *push.Service
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.PushSubscriber)
	}

	notifier := notify.NewNotifier(alertStore, managerStore, pushStore, hub, pushSvc, emailClient, logger.With("component", "notify"))

	reconciler := billing.NewReconciler(teamStore, userStore, eventStore, revenueStore, logger.With("component", "reconciler"))

	messageH := handler.NewMessageHandler(userStore, teamStore, scheduleStore, aiClient, notifier, logger.With("component", "message"))

	return &Server{
		db:            db,
		hub:           hub,
		webhookH:      handler.NewWebhookHandler(verifier, reconciler, logger.With("component", "webhook")),
		subscriptionH: handler.NewSubscriptionHandler(provider, teamStore, managerStore, logger.With("component", "subscription")),
		messageH:      messageH,
		inboundH:      handler.NewInboundHandler(carrierClient, userStore, messageH, cfg.CarrierWebhookURL, logger.With("component", "inbound")),
		authH:         handler.NewAuthHandler(managerStore, sessionStore, logger.With("component", "auth")),
		alertH:        handler.NewAlertHandler(alertStore, logger.With("component", "alert")),
		scheduleH:     handler.NewScheduleHandler(scheduleStore, logger.With("component", "schedule")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push")),
		userStore:     userStore,
		sessionStore:  sessionStore,
		managerStore:  managerStore,
		rateLimiter:   middleware.NewRateLimiter(),
		complianceCfg: middleware.ComplianceConfig{
			Region:         cfg.Region,
			AllowedRegions: cfg.AllowedRegions,
		},
		logger: logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)
	outerMux.HandleFunc("POST /webhooks/carrier", s.inboundH.HandleInbound)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login, 10))
	outerMux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// The message endpoint is registered without a method so OPTIONS
	// preflights reach the compliance gateway.
	compliance := middleware.Compliance(s.complianceCfg, s.userStore, s.logger.With("component", "compliance"))
	outerMux.Handle("/api/message", compliance(http.HandlerFunc(s.rateLimitedHandler(s.messageH.HandleMessage, 60))))

	// Manager routes behind session auth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.managerStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)

	mux.HandleFunc("GET /api/subscription", s.subscriptionH.GetDetails)
	mux.HandleFunc("POST /api/subscription", s.subscriptionH.Dispatch)

	mux.HandleFunc("GET /api/alerts", s.alertH.List)
	mux.HandleFunc("POST /api/alerts/{id}/read", s.alertH.MarkRead)

	mux.HandleFunc("GET /api/schedule", s.scheduleH.List)
	mux.HandleFunc("POST /api/schedule", s.scheduleH.Create)
	mux.HandleFunc("DELETE /api/schedule/{id}", s.scheduleH.Delete)

	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)

	mux.HandleFunc("GET /ws/alerts", ws.HandleAlerts(s.hub, s.logger.With("component", "websocket")))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc, perMinute int) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, perMinute, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	"github.com/stackgo/backend/internal/database"
	"github.com/stackgo/backend/internal/events"
	"github.com/stackgo/backend/internal/handlers"
	mW "github.com/stackgo/backend/internal/middleware"
	"github.com/stackgo/backend/internal/realtime"
	"github.com/stackgo/backend/internal/services"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("reputation.floor", "REPUTATION_FLOOR")
	viper.BindEnv("realtime.send_queue_size", "REALTIME_SEND_QUEUE_SIZE")
	viper.BindEnv("realtime.pending_limit", "REALTIME_PENDING_LIMIT")
	viper.BindEnv("realtime.heartbeat_timeout", "REALTIME_HEARTBEAT_TIMEOUT")
	viper.BindEnv("realtime.bridge_channel", "REALTIME_BRIDGE_CHANNEL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize storage
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Event bus and fan-out
	bus := events.NewBus()
	hub := realtime.NewHub()

	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()
	if redisClient != nil {
		bridge := realtime.NewBridge(redisClient, hub)
		hub.SetBridge(bridge)
		go bridge.Run(bridgeCtx)
	}

	// Services. Reputation deltas are written inside the vote and acceptance
	// transactions themselves, so the bus only carries best-effort consumers:
	// notifications and live fan-out.
	ledgerService := services.NewLedgerService(db, bus)
	notificationService := services.NewNotificationService(db, hub)
	voteService := services.NewVoteService(db, bus, ledgerService)
	questionService := services.NewQuestionService(db, bus, ledgerService)
	fanout := realtime.NewEventFanout(hub, questionService)

	// Handler registration order is delivery order: notifications first, then
	// live pushes.
	for _, kind := range []string{events.VoteCast, events.VoteChanged, events.VoteRetracted} {
		bus.Subscribe(kind, "notifications", notificationService.HandleVoteEvent)
		bus.Subscribe(kind, "fanout", fanout.HandleVoteEvent)
	}
	bus.Subscribe(events.AnswerPosted, "notifications", notificationService.HandleAnswerPosted)
	bus.Subscribe(events.AnswerPosted, "fanout", fanout.HandleAnswerPosted)
	bus.Subscribe(events.AnswerAccepted, "notifications", notificationService.HandleAnswerAccepted)
	bus.Subscribe(events.AnswerAccepted, "fanout", fanout.HandleAnswerAccepted)
	bus.Subscribe(events.ReputationChanged, "fanout", fanout.HandleReputationChanged)

	// HTTP handlers
	voteHandler := handlers.NewVoteHandler(voteService, questionService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	reputationHandler := handlers.NewReputationHandler(ledgerService)
	wsHandler := realtime.NewHandler(hub, notificationService, questionService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "healthy",
			"connections": hub.Registry().ConnectionCount(),
			"dropped":     hub.Dropped(),
		})
	})

	// Live connections authenticate themselves during the handshake, so no
	// auth middleware and no request timeout here.
	r.Get("/ws", wsHandler.ServeWS)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(mW.AuthMiddleware)

		r.Post("/questions/{questionId}/vote", voteHandler.VoteQuestion)
		r.Post("/answers/{answerId}/vote", voteHandler.VoteAnswer)

		r.Get("/notifications", notificationHandler.List)
		r.Get("/notifications/unread-count", notificationHandler.UnreadCount)
		r.Post("/notifications/{notificationId}/read", notificationHandler.MarkRead)
		r.Post("/notifications/read-all", notificationHandler.MarkAllRead)

		r.Get("/users/{userId}/reputation", reputationHandler.History)
		r.Post("/admin/reputation", reputationHandler.Adjust)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopBridge()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

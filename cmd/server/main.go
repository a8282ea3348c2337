package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/Ifsling/os-in-website/internal/api"
	"github.com/Ifsling/os-in-website/internal/config"
	"github.com/Ifsling/os-in-website/internal/kafka"
	"github.com/Ifsling/os-in-website/internal/logging"
	"github.com/Ifsling/os-in-website/internal/sessions"
	"github.com/Ifsling/os-in-website/internal/storage"
	"github.com/Ifsling/os-in-website/internal/websocket"
)

// openStore picks PostgreSQL, then SQLite, then nothing. A store that
// cannot be reached leaves the server in memory-only mode
func openStore(ctx context.Context, cfg config.Config) storage.Store {
	switch {
	case cfg.DatabaseURL != "":
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Warn("database not available, running in memory-only mode (rounds won't be persisted)")
			return nil
		}
		return store
	case cfg.SQLitePath != "":
		store, err := storage.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			log.WithError(err).Warn("sqlite not available, running in memory-only mode (rounds won't be persisted)")
			return nil
		}
		return store
	default:
		log.Info("no store configured, running in memory-only mode")
		return nil
	}
}

func main() {
	// Load .env file if present
	if err := config.LoadEnvFile(".env"); err != nil {
		log.WithError(err).Warn("could not read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if err := logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat); err != nil {
		log.WithError(err).Fatal("invalid logging configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store := openStore(ctx, cfg)
	if store != nil {
		defer store.Close()
	}

	// Kafka is optional; a disabled producer drops events
	producer := &kafka.Producer{}
	var consumer *kafka.Consumer
	if cfg.KafkaEnabled() {
		producer = kafka.NewProducer(cfg.KafkaBrokers)
		if producer.IsEnabled() {
			consumer, err = kafka.NewConsumer(cfg.KafkaBrokers)
			if err != nil {
				log.WithError(err).Warn("kafka consumer not available")
				consumer = nil
			} else {
				consumer.Start()
				defer consumer.Stop()
			}
		}
	}
	defer producer.Close()

	sm := sessions.NewManager()
	sm.SetOnOpen(producer.EmitSessionOpen)
	sm.SetOnAction(producer.EmitAction)
	sm.SetOnRoundEnd(func(r sessions.Result) {
		producer.EmitRoundEnd(r)

		if store != nil {
			if err := store.SaveResult(context.Background(), r); err != nil {
				log.WithFields(log.Fields{"session": r.SessionID, "kind": r.Kind}).WithError(err).Error("error saving round")
			}
		}
	})
	if cfg.SessionIdleTTL > 0 {
		go sm.Reap(ctx, cfg.SessionIdleTTL)
	} else {
		log.Info("idle session reaper disabled")
	}

	hub := websocket.NewHub(sm, cfg.AIThinkDelay)
	sm.SetOnChange(hub.BroadcastSnapshot)
	sm.SetOnClose(hub.CloseSession)
	go hub.Run(ctx)
	handler := websocket.NewHandler(hub, sm)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", api.NewHandlers(sm, store, producer, consumer).RegisterRoutes)

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, handler, w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":      cfg.Port,
			"websocket": "ws://localhost:" + cfg.Port + "/ws",
			"api":       "http://localhost:" + cfg.Port + "/api",
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	stop()

	log.Info("server exited properly")
}

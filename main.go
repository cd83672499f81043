package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"wedding-manager/internal/api"
	"wedding-manager/internal/auth"
	"wedding-manager/internal/config"
	"wedding-manager/internal/database"
	eventdb "wedding-manager/internal/events/db"
	events "wedding-manager/internal/events/service"
	"wedding-manager/internal/export"
	"wedding-manager/internal/feed"
	"wedding-manager/internal/feed/redisbridge"
	"wedding-manager/internal/importer"
	"wedding-manager/internal/kafka"
	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"
	"wedding-manager/internal/storage"
	ticketdb "wedding-manager/internal/tickets/db"
	"wedding-manager/internal/tickets/qr"
	tickets "wedding-manager/internal/tickets/service"
	"wedding-manager/internal/tickets/template"
	"wedding-manager/internal/website"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func setupPublisher(cfg config.KafkaConfig, log *logger.Logger) kafka.Publisher {
	if !cfg.Enabled {
		log.Info("KAFKA", "Kafka disabled, domain events are not published")
		return kafka.NoopPublisher{}
	}

	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Brokers))
	if err := kafka.EnsureTopicsExist(cfg.Brokers, kafka.Topics(cfg.Topics), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}
	return kafka.NewProducer(cfg.Brokers, log)
}

func setupStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.ObjectStore, func(), error) {
	if cfg.Storage.Backend != "gridfs" {
		store, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Server.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("STORAGE", fmt.Sprintf("Storing files under %s", cfg.Storage.LocalDir))
		return store, func() {}, nil
	}

	client, err := storage.Connect(ctx, cfg.Storage.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewGridFSStore(client.Database(cfg.Storage.MongoDB), cfg.Storage.Bucket, cfg.Server.PublicBaseURL)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, nil, err
	}
	log.Info("STORAGE", fmt.Sprintf("✅ GridFS bucket %s.%s ready", cfg.Storage.MongoDB, cfg.Storage.Bucket))
	return store, func() { client.Disconnect(context.Background()) }, nil
}

// startBridge connects the live feeds of every instance through Redis.
func startBridge(ctx context.Context, cfg config.RedisConfig, eventSvc *events.EventService, ticketSvc *tickets.TicketService, log *logger.Logger) (func(), error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))

	bridge := redisbridge.NewBridge(client, cfg.FeedChannel, log)
	eventSvc.Notifier = bridge
	ticketSvc.Notifier = bridge

	go func() {
		err := bridge.Run(ctx, func(scope string) {
			if scope == feed.EventsScope {
				if err := eventSvc.Refresh(ctx); err != nil {
					log.Error("REDIS", fmt.Sprintf("Failed to refresh events after peer change: %v", err))
				}
				return
			}
			if eventID, ok := feed.ParseTicketsScope(scope); ok {
				if err := ticketSvc.Refresh(ctx, eventID); err != nil {
					log.Error("REDIS", fmt.Sprintf("Failed to refresh tickets of %s after peer change: %v", eventID, err))
				}
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("REDIS", fmt.Sprintf("Feed bridge stopped: %v", err))
		}
	}()

	return func() { client.Close() }, nil
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting wedding manager")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	if err := database.Prepare(ctx, bunDB, cfg.Database, log); err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	publisher := setupPublisher(cfg.Kafka, log)
	defer publisher.Close()

	eventSvc := events.NewEventService(&eventdb.DB{Bun: bunDB}, feed.NewHub[[]models.Event](), publisher, cfg.Kafka.Topics.EventsChanged, log)
	ticketSvc := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, feed.NewHub[[]models.Ticket](), publisher, cfg.Kafka.Topics.TicketsChanged, log)
	eventSvc.OnDelete = ticketSvc.EventDeleted

	if cfg.Redis.Enabled {
		closeRedis, err := startBridge(ctx, cfg.Redis, eventSvc, ticketSvc, log)
		if err != nil {
			log.Fatal("REDIS", err.Error())
		}
		defer closeRedis()
	} else {
		log.Info("REDIS", "Redis disabled, live feeds stay local to this instance")
	}

	store, closeStore, err := setupStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("STORAGE", err.Error())
	}
	defer closeStore()

	generator, err := template.NewGenerator(cfg.PDF.FontPath)
	if err != nil {
		log.Fatal("PDF", err.Error())
	}
	renderer := template.NewRenderer(qr.NewSurface(qr.DefaultSize), generator)

	handler := &api.Handler{
		Events:   eventSvc,
		Tickets:  ticketSvc,
		Renderer: renderer,
		Packager: export.NewPackager(renderer, publisher, cfg.Kafka.Topics.ExportsCompleted, log),
		Importer: importer.NewImporter(ticketSvc, importer.Limits{
			MaxRows:          cfg.Export.MaxImportRows,
			MaxTicketsPerRow: cfg.Export.MaxTicketsInRow,
		}, log),
		Website: website.NewService(eventSvc, store, cfg.Server.PublicBaseURL, cfg.Storage.MaxPhotoMB, log),
		Files:   store,
		DB:      bunDB,
		Limiter: api.NewIPRateLimiter(cfg.Export.RatePerSecond, cfg.Export.Burst),
		Logger:  log,
	}

	var verifier auth.Verifier
	if cfg.Auth.Enabled {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		verifier = oidcVerifier
		log.Info("AUTH", "OIDC middleware applied to protected API routes")
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Router(verifier),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		// live streams end when the process is told to stop
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Wedding manager running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Wedding manager shutdown complete")
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fathima-sithara/dm-service/internal/api"
	"github.com/fathima-sithara/dm-service/internal/auth"
	"github.com/fathima-sithara/dm-service/internal/config"
	"github.com/fathima-sithara/dm-service/internal/directory"
	"github.com/fathima-sithara/dm-service/internal/events"
	"github.com/fathima-sithara/dm-service/internal/logger"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/middleware"
	"github.com/fathima-sithara/dm-service/internal/repository"
	"github.com/fathima-sithara/dm-service/internal/service"
	"github.com/fathima-sithara/dm-service/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type publisher interface {
	service.Publisher
	Close() error
}

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config/config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		store repository.Store
		dir   directory.Directory
	)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store = repository.NewMemoryStore()
		dir = directory.NewMemoryDirectory()
		lg.Warn("using in-memory storage; data is lost on restart")
	default:
		mc, err := repository.NewMongoClient(cfg)
		if err != nil {
			lg.Fatal("mongo init", zap.Error(err))
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()

		db := mc.Database(cfg.Mongo.Database)
		ms := repository.NewMongoStore(db, repository.MongoOptions{
			ConversationsCollection: cfg.Mongo.ConversationsCollection,
			MessagesCollection:      cfg.Mongo.MessagesCollection,
			Transactions:            cfg.Mongo.Transactions,
		}, lg)
		if err := ms.EnsureIndexes(context.Background()); err != nil {
			lg.Fatal("mongo indexes", zap.Error(err))
		}
		store = ms
		dir = directory.NewMongoDirectory(db, cfg.Mongo.UsersCollection)
	}

	var pub publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, m, lg)
	} else {
		lg.Info("kafka brokers not configured; message events are only logged")
		pub = events.NewLogPublisher(lg)
	}

	var limiter *middleware.RateLimiter
	if cfg.Redis.Addr != "" && cfg.App.RateLimitPerMin > 0 {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limiter = middleware.NewRateLimiter(middleware.NewRedisCounter(rdb), cfg.Redis.Prefix,
			cfg.App.RateLimitPerMin, time.Minute, lg)
	}

	tokens, err := auth.NewJWTValidator(cfg.JWT.PublicKeyPath, cfg.JWT.Alg, cfg.JWT.HSSecret)
	if err != nil {
		lg.Fatal("jwt validator", zap.Error(err))
	}

	hub := ws.NewHub(lg)
	app := api.NewServer(api.Deps{
		Conversations: service.NewConversationService(store, dir, m, lg),
		Messages:      service.NewMessageService(store, pub, hub, m, lg),
		Directory:     dir,
		Tokens:        tokens,
		Limiter:       limiter,
		Hub:           hub,
		Metrics:       m,
		Log:           lg,
	})

	go func() {
		if err := app.Listen(":" + cfg.App.PortString()); err != nil {
			lg.Fatal("server listen", zap.Error(err))
		}
	}()
	lg.Info("dm-service started", zap.String("port", cfg.App.PortString()), zap.String("storage", cfg.Storage.Driver))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout())
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		lg.Error("server shutdown", zap.Error(err))
	}
	if err := pub.Close(); err != nil {
		lg.Error("publisher close", zap.Error(err))
	}
	lg.Info("dm-service stopped")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/shopcore/shopd/internal/auth"
	"github.com/shopcore/shopd/internal/catalog"
	"github.com/shopcore/shopd/internal/config"
	"github.com/shopcore/shopd/internal/httpx"
	kafkax "github.com/shopcore/shopd/internal/kafka"
	"github.com/shopcore/shopd/internal/logx"
	"github.com/shopcore/shopd/internal/orders"
	"github.com/shopcore/shopd/internal/postgres"
	"github.com/shopcore/shopd/internal/redisx"
	"github.com/shopcore/shopd/internal/users"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logx.Init(cfg.LogMode, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	prod.Start(ctx)

	// Repos, engine, auth
	userRepo := &users.Repo{DB: db}
	productRepo := &catalog.Repo{DB: db}
	engine := &orders.Engine{Store: &orders.PGStore{DB: db}}
	tokens := &auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL, Issuer: cfg.ServiceName}
	requireAuth := auth.Require(tokens, userRepo)

	// Handlers
	uh := &httpx.UsersHandler{Repo: userRepo, Tokens: tokens}
	ph := &httpx.ProductsHandler{Repo: productRepo, Cache: rdb}
	oh := &httpx.OrdersHandler{Engine: engine, Producer: prod, Cache: rdb, Service: cfg.ServiceName}

	router := httpx.NewRouter()
	router.Route("/api/users", func(r chi.Router) {
		uh.RegisterPublic(r)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			uh.RegisterPrivate(r)
		})
	})
	router.Route("/api/products", func(r chi.Router) {
		ph.RegisterPublic(r)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth, auth.RequireAdmin)
			ph.RegisterAdmin(r)
		})
	})
	router.Route("/api/orders", func(r chi.Router) {
		r.Use(requireAuth)
		oh.Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // close inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}

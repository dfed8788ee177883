// Package main provides the entry point for the catalogue service. It serves
// the product REST API as an OAuth2 resource server, with health endpoints
// and graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jsamuelsen11/selmag/internal/catalogue"
	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/database/mysql"
	"github.com/jsamuelsen11/selmag/internal/database/postgres"
	"github.com/jsamuelsen11/selmag/internal/handlers"
	"github.com/jsamuelsen11/selmag/internal/middleware"
	"github.com/jsamuelsen11/selmag/internal/redis"
	"github.com/jsamuelsen11/selmag/internal/repository"
	"github.com/jsamuelsen11/selmag/internal/token"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

// productStore is the repository backing the API plus the database it pings, if any.
type productStore struct {
	repo     repository.ProductRepository
	database handlers.Pinger
	close    func()
}

func main() {
	loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err = cfg.ValidateResourceServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid resource server configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithConfig(&cfg.Logging)
	log.Info("Starting catalogue service")
	log.WithFields(logrus.Fields{
		"version":     handlers.Version,
		"port":        cfg.Server.Port,
		"host":        cfg.Server.Host,
		"tls":         cfg.IsTLSEnabled(),
		"environment": cfg.Environment.Environment,
	}).Info("Service configuration loaded")

	validator, err := token.NewValidator(context.Background(), &cfg.ResourceServer)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize bearer token validation")
	}

	store, rdb := initializeStore(cfg, log)
	defer closeStore(store, log)

	products := initializeProductStore(cfg, log)
	defer products.close()

	server := setupServer(cfg, store, rdb, products, validator, log)
	runServer(server, cfg, log)
}

func loadDotEnv() {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env.local file: %v\n", err)
		}
	}
}

// initializeStore connects to Redis when configured and falls back to the
// in-memory store otherwise. The returned go-redis client backs rate limiting
// and is nil without Redis.
func initializeStore(cfg *config.Config, log *logrus.Logger) (redis.Store, *goredis.Client) {
	if !cfg.IsRedisConfigured() {
		log.Info("Redis not configured, using in-memory store")
		return redis.NewMemoryStore(log), nil
	}

	client, err := redis.NewClient(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Warn("Failed to connect to Redis, falling back to in-memory store")
		return redis.NewMemoryStore(log), nil
	}

	log.Info("Successfully connected to Redis store")
	return client, client.GetRedisClient()
}

// initializeProductStore picks PostgreSQL, then MySQL, then the seeded
// in-memory repository.
func initializeProductStore(cfg *config.Config, log *logrus.Logger) productStore {
	switch {
	case cfg.IsPostgresDatabaseConfigured():
		mgr, err := postgres.NewManager(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize PostgreSQL manager")
		}
		log.Info("Using PostgreSQL product repository")
		return productStore{
			repo:     repository.NewPostgresProductRepository(mgr.Pool),
			database: mgr,
			close:    mgr.Close,
		}
	case cfg.IsMySQLDatabaseConfigured():
		mgr, err := mysql.NewManager(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize MySQL manager")
		}
		log.Info("Using MySQL product repository")
		return productStore{
			repo:     repository.NewMySQLProductRepository(mgr.DB),
			database: mgr,
			close:    mgr.Close,
		}
	default:
		log.Warn("No database configured, using seeded in-memory product repository")
		return productStore{
			repo:  repository.NewSeededMemoryProductRepository(),
			close: func() {},
		}
	}
}

func closeStore(store redis.Store, log *logrus.Logger) {
	if err := store.Close(); err != nil {
		log.WithError(err).Error("Failed to close store connection")
	}
}

func setupServer(
	cfg *config.Config,
	store redis.Store,
	rdb *goredis.Client,
	products productStore,
	validator token.Validator,
	log *logrus.Logger,
) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stack := middleware.NewStack(cfg, store, rdb, middleware.NewHTTPMetrics(reg), log)

	healthOpts := []handlers.HealthOption{handlers.WithConfigCheck(handlers.ResourceServerCheck)}
	if products.database != nil {
		healthOpts = append(healthOpts, handlers.WithDatabase(products.database))
	}
	healthHandler := handlers.NewHealthHandler(cfg, store, handlers.NewHealthMetrics(reg), log, healthOpts...)
	productsHandler := handlers.NewProductsHandler(catalogue.NewProductService(products.repo, log), log)

	router := mux.NewRouter()
	router.Use(stack.RequestLogger, stack.RateLimit, stack.ContentType)
	healthHandler.RegisterRoutes(router, reg)

	api := router.NewRoute().Subrouter()
	api.Use(
		stack.BearerAuth(validator),
		stack.RequireScopes(cfg.ResourceServer.ReadScope, cfg.ResourceServer.WriteScope),
	)
	productsHandler.RegisterRoutes(api)

	finalHandler := stack.Chain(
		router,
		stack.Recovery,
		stack.SecurityHeaders,
		stack.CORS,
	)

	return &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      finalHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func runServer(server *http.Server, cfg *config.Config, log *logrus.Logger) {
	go startServer(server, cfg, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	} else {
		log.Info("Server exited gracefully")
	}
}

func startServer(server *http.Server, cfg *config.Config, log *logrus.Logger) {
	log.WithFields(logrus.Fields{
		"addr": server.Addr,
		"tls":  cfg.IsTLSEnabled(),
	}).Info("Starting HTTP server")

	var err error
	if cfg.IsTLSEnabled() {
		err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
	} else {
		err = server.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("Failed to start server")
	}
}

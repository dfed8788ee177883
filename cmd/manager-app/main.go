// Package main provides the entry point for the manager application. It serves
// the product management pages and calls the catalogue API on behalf of the
// signed-in manager.
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

	"github.com/jsamuelsen11/selmag/internal/client"
	"github.com/jsamuelsen11/selmag/internal/client/catalogue"
	"github.com/jsamuelsen11/selmag/internal/config"
	"github.com/jsamuelsen11/selmag/internal/handlers"
	"github.com/jsamuelsen11/selmag/internal/manager"
	"github.com/jsamuelsen11/selmag/internal/middleware"
	"github.com/jsamuelsen11/selmag/internal/models"
	"github.com/jsamuelsen11/selmag/internal/redis"
	"github.com/jsamuelsen11/selmag/internal/startup"
	"github.com/jsamuelsen11/selmag/pkg/logger"
)

func main() {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env.local file: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithConfig(&cfg.Logging)
	log.Info("Starting manager application")
	log.WithFields(logrus.Fields{
		"version":       handlers.Version,
		"port":          cfg.Server.Port,
		"catalogue_uri": cfg.Catalogue.BaseURI,
		"grant_type":    cfg.Catalogue.GrantType,
		"environment":   cfg.Environment.Environment,
	}).Info("Service configuration loaded")

	if err = cfg.ValidateCatalogueClient(); err != nil {
		log.WithError(err).Fatal("Invalid catalogue client configuration")
	}

	registrations, err := startup.LoadClientRegistrations(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load client registrations")
	}

	store, rdb := initializeStore(cfg, log)
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Failed to close store connection")
		}
	}()

	seedSession(cfg, store, log)

	server := setupServer(cfg, registrations, store, rdb, log)
	runServer(server, cfg, log)
}

func initializeStore(cfg *config.Config, log *logrus.Logger) (redis.Store, *goredis.Client) {
	if !cfg.IsRedisConfigured() {
		log.Info("Redis not configured, using in-memory store")
		return redis.NewMemoryStore(log), nil
	}

	client, err := redis.NewClient(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Warn("Failed to connect to Redis, falling back to in-memory store")
		log.Warn("Note: In-memory store will not share credentials or sessions between instances")
		return redis.NewMemoryStore(log), nil
	}

	return client, client.GetRedisClient()
}

// seedSession stores a manager session for local development.
func seedSession(cfg *config.Config, store redis.Store, log *logrus.Logger) {
	if cfg.Session.SeedRefreshToken == "" {
		return
	}
	if cfg.Environment.Environment != config.Local {
		log.Warn("Ignoring seeded session outside the LOCAL environment")
		return
	}

	session := models.NewSession(models.Principal{
		Subject:     "local-manager",
		Name:        "Local Manager",
		Authorities: []string{cfg.Session.RequiredRole},
		Grant:       models.Grant{RefreshToken: cfg.Session.SeedRefreshToken},
	}, cfg.Session.TTL)

	if err := store.StoreSession(context.Background(), session, cfg.Session.TTL); err != nil {
		log.WithError(err).Error("Failed to seed local session")
		return
	}

	log.WithFields(logrus.Fields{
		"cookie":     cfg.Session.CookieName,
		"session_id": session.ID,
	}).Info("Seeded local manager session")
}

func setupServer(
	cfg *config.Config,
	registrations *startup.ClientRegistrations,
	store redis.Store,
	rdb *goredis.Client,
	log *logrus.Logger,
) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clientMetrics := client.NewMetrics(reg)
	provider := client.NewCredentialProvider(
		registrations.Registry,
		store,
		log,
		client.WithClockSkew(cfg.Catalogue.ClockSkew),
		client.WithRefreshRetention(cfg.Session.TTL),
		client.WithMetrics(clientMetrics),
	)
	factory := catalogue.NewFactory(registrations.Catalogue, provider, nil, clientMetrics, log)

	stack := middleware.NewStack(cfg, store, rdb, middleware.NewHTTPMetrics(reg), log)
	healthHandler := handlers.NewHealthHandler(
		cfg, store, handlers.NewHealthMetrics(reg), log,
		handlers.WithConfigCheck(handlers.CatalogueClientCheck),
	)
	managerHandler := handlers.NewManagerHandler(manager.NewProductService(factory, log), log)

	router := mux.NewRouter()
	router.Use(stack.RequestLogger, stack.RateLimit, stack.ContentType)
	healthHandler.RegisterRoutes(router, reg)

	pages := router.NewRoute().Subrouter()
	pages.Use(stack.SessionAuth(cfg.Session.CookieName, cfg.Session.RequiredRole))
	managerHandler.RegisterRoutes(pages)

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
	go func() {
		log.WithField("addr", server.Addr).Info("Starting HTTP server")

		var err error
		if cfg.IsTLSEnabled() {
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

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

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bus_tracker/internal/cache"
	"bus_tracker/internal/config"
	"bus_tracker/internal/controllers"
	"bus_tracker/internal/logger"
	"bus_tracker/internal/metrics"
	"bus_tracker/internal/middleware"
	"bus_tracker/internal/publisher"
	"bus_tracker/internal/routes"
	"bus_tracker/internal/store"
	"bus_tracker/internal/tracking"
	"bus_tracker/internal/validators"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Initialize structured logging to file
	logWriter := logger.Setup(cfg.LogFile, cfg.LogLevel, cfg.LogStdout)

	if err := validators.Register(); err != nil {
		logrus.WithError(err).Fatal("Failed to register request validators.")
	}

	// Connect to the database
	db, err := config.InitDB(cfg.DB)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database.")
	}

	busStore := store.NewBusStore(db)
	routeStore := store.NewRouteStore(db)
	historyStore := store.NewHistoryStore(db)

	var trackedRoutes tracking.RouteStore = routeStore
	var invalidator controllers.RouteInvalidator
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		if err != nil {
			logrus.WithError(err).Warn("Redis unavailable, serving routes from the database.")
		} else {
			defer rdb.Close()
			rc := cache.NewRouteCache(rdb, routeStore, cfg.RouteCacheTTL)
			trackedRoutes, invalidator = rc, rc
		}
	}

	collector := metrics.NewCollector()
	hub := controllers.NewLocationHub(collector, cfg.CORSOrigin)
	defer hub.Close()

	opts := []tracking.Option{
		tracking.WithObserver(collector),
		tracking.WithNotifier(hub),
	}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSPrefix)
		if err != nil {
			logrus.WithError(err).Warn("NATS unavailable, bus updates will not be published.")
		} else {
			defer pub.Close()
			opts = append(opts, tracking.WithNotifier(pub))
		}
	}
	tracker := tracking.NewTracker(busStore, trackedRoutes, historyStore, opts...)

	r := routes.SetupRouter(routes.Deps{
		Auth:     middleware.NewAuth(cfg.JWTSecret),
		Tracking: controllers.NewTrackingController(tracker, cfg.TimeZone),
		Routes:   controllers.NewRouteController(routeStore, invalidator),
		Buses:    controllers.NewBusController(busStore),
		Hub:      hub,
		Metrics:  collector.Handler(),
		Middleware: []gin.HandlerFunc{
			// Request logging middleware
			ginlog.SetLogger(
				ginlog.WithWriter(logWriter),
				ginlog.WithUTC(true),
				ginlog.WithSkipPath([]string{"/healthz", "/metrics"}),
				ginlog.WithDefaultLevel(zerolog.InfoLevel),
			),
		},
	})

	// Wrap with CORS
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           middleware.EnableCORS(r, cfg.CORSOrigin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.WithField("addr", cfg.Addr).Info("Server running.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("HTTP server failed.")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed.")
	}
}

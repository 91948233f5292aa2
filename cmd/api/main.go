package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/medsched/clinic-api/internal/config"
	"github.com/medsched/clinic-api/internal/handler"
	appointmenthandler "github.com/medsched/clinic-api/internal/handler/appointment"
	authhandler "github.com/medsched/clinic-api/internal/handler/auth"
	dashboardhandler "github.com/medsched/clinic-api/internal/handler/dashboard"
	healthhandler "github.com/medsched/clinic-api/internal/handler/health"
	patienthandler "github.com/medsched/clinic-api/internal/handler/patient"
	userhandler "github.com/medsched/clinic-api/internal/handler/user"
	"github.com/medsched/clinic-api/internal/middleware"
	"github.com/medsched/clinic-api/internal/repository/postgres"
	"github.com/medsched/clinic-api/internal/router"
	appointmentservice "github.com/medsched/clinic-api/internal/service/appointment"
	authservice "github.com/medsched/clinic-api/internal/service/auth"
	dashboardservice "github.com/medsched/clinic-api/internal/service/dashboard"
	patientservice "github.com/medsched/clinic-api/internal/service/patient"
	"github.com/medsched/clinic-api/internal/service/rbac"
	userservice "github.com/medsched/clinic-api/internal/service/user"
	"github.com/medsched/clinic-api/pkg/auth"
	"github.com/medsched/clinic-api/pkg/logger"
	"github.com/medsched/clinic-api/pkg/messaging"
	redisbroker "github.com/medsched/clinic-api/pkg/messaging/redis"
	"github.com/medsched/clinic-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.New(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Pretty:     cfg.Log.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appointmentRepo := postgres.NewAppointmentRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	userRepo := postgres.NewUserRepository(db)

	registry := prometheus.NewRegistry()
	m := metrics.New("clinic")
	m.Register(registry)

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     10,
			MinIdleConns: 2,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, appointment events disabled")
		} else {
			defer broker.Close()
		}
	}

	tokens := auth.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	rbacSvc := rbac.NewService()
	appointmentSvc := appointmentservice.NewService(appointmentRepo, patientRepo, userRepo, rbacSvc, broker, m, log)
	patientSvc := patientservice.NewService(patientRepo, rbacSvc, log)
	userSvc := userservice.NewService(userRepo, log)
	authSvc := authservice.NewService(userRepo, tokens)
	dashboardSvc := dashboardservice.NewService(appointmentRepo, patientRepo, rbacSvc)

	handler.RegisterValidations()
	authMw := middleware.NewAuthMiddleware(authSvc)

	r := router.New(
		authMw,
		authhandler.NewHandler(authSvc, userSvc),
		appointmenthandler.NewHandler(appointmentSvc),
		patienthandler.NewHandler(patientSvc, appointmentSvc),
		userhandler.NewHandler(userSvc),
		dashboardhandler.NewHandler(dashboardSvc),
		healthhandler.NewHandler(db),
		registry,
		log,
		router.Config{
			RateLimit:  rate.Limit(cfg.Server.RateLimitRPS),
			RateBurst:  cfg.Server.RateLimitBurst,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medsched/clinic-api/internal/config"
	"github.com/medsched/clinic-api/internal/email"
	"github.com/medsched/clinic-api/pkg/logger"
	"github.com/medsched/clinic-api/pkg/messaging"
	redisbroker "github.com/medsched/clinic-api/pkg/messaging/redis"
	"github.com/medsched/clinic-api/pkg/metrics"
)

// The notifier tails the appointment event channels and mails the front
// desk about every booking change. It runs as its own process so mail
// delivery never sits on the request path.
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

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     5,
		MinIdleConns: 1,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	m := metrics.New("clinic_notifier")
	m.Register(prometheus.DefaultRegisterer)
	mailer := email.NewSMTPService(cfg.SMTP, m, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, channel := range []string{messaging.ChannelAppointmentCreated, messaging.ChannelAppointmentUpdated} {
		msgs, err := broker.Subscribe(ctx, channel)
		if err != nil {
			log.Fatal().Err(err).Str("channel", channel).Msg("failed to subscribe")
		}
		go consume(msgs, mailer, cfg.SMTP.NotifyTo, log)
	}

	log.Info().Msg("notifier started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("notifier shutting down")
}

func consume(msgs <-chan []byte, mailer email.Service, to string, log zerolog.Logger) {
	for payload := range msgs {
		var event messaging.AppointmentEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Warn().Err(err).Msg("skipping malformed event")
			continue
		}
		if err := mailer.SendAppointmentNotification(to, &event); err != nil {
			log.Warn().Err(err).Str("record_number", event.RecordNumber).Msg("notification failed")
		}
	}
}

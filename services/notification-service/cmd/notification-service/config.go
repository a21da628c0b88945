package main

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
)

type serviceConfig struct {
	Name           string
	LogLevel       string
	HTTPPort       string
	DatabaseURL    string
	MigrateOnStart bool

	KafkaBrokers string
	KafkaGroupID string

	SMTPHost string
	SMTPPort string
	SMTPFrom string

	BookingGRPCAddr string

	ShutdownTimeout time.Duration
}

func loadConfig() (serviceConfig, error) {
	cfg := serviceConfig{
		Name:            config.String("SERVICE_NAME", "notification-service"),
		LogLevel:        config.String("LOG_LEVEL", "info"),
		MigrateOnStart:  config.Bool("MIGRATE_ON_START", false),
		KafkaBrokers:    config.String("KAFKA_BROKERS", ""),
		KafkaGroupID:    config.String("KAFKA_GROUP_ID", "notification-service"),
		SMTPHost:        config.String("SMTP_HOST", "mailpit"),
		SMTPFrom:        config.String("SMTP_FROM", "no-reply@salonbook.local"),
		BookingGRPCAddr: config.String("BOOKING_GRPC_ADDR", ""),
		ShutdownTimeout: config.Duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	var err error
	if cfg.HTTPPort, err = config.Port("PORT", "8085"); err != nil {
		return serviceConfig{}, err
	}
	if cfg.SMTPPort, err = config.Port("SMTP_PORT", "1025"); err != nil {
		return serviceConfig{}, err
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return serviceConfig{}, err
	}
	return cfg, nil
}

package main

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
)

type serviceConfig struct {
	Name           string
	LogLevel       string
	HTTPPort       string
	GRPCPort       string
	DatabaseURL    string
	MigrateOnStart bool
	DBMaxConns     int

	KafkaBrokers string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitPerMinute int
	RateLimitFailOpen  bool

	JWTSecret   string
	CORSOrigins []string

	SlotInterval    int
	HorizonMonths   int
	CancelledBlocks bool

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() (serviceConfig, error) {
	cfg := serviceConfig{
		Name:               config.String("SERVICE_NAME", "booking-service"),
		LogLevel:           config.String("LOG_LEVEL", "info"),
		MigrateOnStart:     config.Bool("MIGRATE_ON_START", false),
		DBMaxConns:         config.Int("DB_MAX_CONNS", 10),
		KafkaBrokers:       config.String("KAFKA_BROKERS", ""),
		RedisAddr:          config.String("REDIS_ADDR", ""),
		RedisPassword:      config.String("REDIS_PASSWORD", ""),
		RedisDB:            config.Int("REDIS_DB", 0),
		RateLimitPerMinute: config.Int("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitFailOpen:  config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		CORSOrigins:        config.List("CORS_ALLOWED_ORIGINS", ""),
		SlotInterval:       config.Int("SLOT_INTERVAL_MINUTES", 30),
		HorizonMonths:      config.Int("BOOKING_HORIZON_MONTHS", 2),
		CancelledBlocks:    config.Bool("CANCELLED_BLOCKS_SLOTS", false),
		RequestTimeout:     config.Duration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout:    config.Duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	var err error
	if cfg.HTTPPort, err = config.Port("PORT", "8083"); err != nil {
		return serviceConfig{}, err
	}
	if cfg.GRPCPort, err = config.Port("GRPC_PORT", "9083"); err != nil {
		return serviceConfig{}, err
	}
	if cfg.HTTPPort == cfg.GRPCPort {
		return serviceConfig{}, fmt.Errorf("PORT and GRPC_PORT must differ (both %s)", cfg.HTTPPort)
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return serviceConfig{}, err
	}
	if cfg.JWTSecret, err = config.RequiredString("JWT_SECRET"); err != nil {
		return serviceConfig{}, err
	}
	if cfg.SlotInterval > 24*60 {
		return serviceConfig{}, fmt.Errorf("SLOT_INTERVAL_MINUTES must be at most 1440 (got %d)", cfg.SlotInterval)
	}
	return cfg, nil
}

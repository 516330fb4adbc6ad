package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Holds    HoldsConfig
	Booking  BookingConfig
	Auth     AuthConfig

	RabbitMQURL    string
	MigrateOnStart bool
}

type ServerConfig struct {
	Host    string
	Port    int
	GinMode string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type HoldsConfig struct {
	DefaultTTL time.Duration
	MinTTL     time.Duration
	MaxTTL     time.Duration

	SweepInterval      time.Duration
	SuggestHorizon     time.Duration
	SuggestLimit       int
	RateLimitPerMinute int
}

type BookingConfig struct {
	Deadline time.Duration
	Location *time.Location
}

type AuthConfig struct {
	JWTSecret string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host:    strEnv("SERVER_HOST", "localhost"),
		Port:    serverPort,
		GinMode: strEnv("GIN_MODE", "release"),
	}

	postgresPort, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	maxConns, err := intEnv("POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     strEnv("POSTGRES_HOST", "localhost"),
		Port:     postgresPort,
		SSLMode:  strEnv("POSTGRES_SSLMODE", "disable"),
		MaxConns: int32(maxConns),
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:     strEnv("REDIS_ADDR", "localhost:6380"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	holdsCfg := HoldsConfig{}
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"HOLD_TTL", 30 * time.Minute, &holdsCfg.DefaultTTL},
		{"HOLD_MIN_TTL", time.Minute, &holdsCfg.MinTTL},
		{"HOLD_MAX_TTL", 2 * time.Hour, &holdsCfg.MaxTTL},
		{"SWEEP_INTERVAL", time.Minute, &holdsCfg.SweepInterval},
		{"SUGGEST_HORIZON", 90 * 24 * time.Hour, &holdsCfg.SuggestHorizon},
	}
	for _, d := range durations {
		if *d.dst, err = durationEnv(d.key, d.def); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if holdsCfg.MinTTL > holdsCfg.MaxTTL {
		return nil, fmt.Errorf("%s: HOLD_MIN_TTL exceeds HOLD_MAX_TTL", op)
	}

	if holdsCfg.SuggestLimit, err = intEnv("SUGGEST_LIMIT", 3); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if holdsCfg.RateLimitPerMinute, err = intEnv("RATE_LIMIT_PER_MINUTE", 10); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	deadline, err := durationEnv("BOOKING_DEADLINE", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	loc, err := time.LoadLocation(strEnv("VENUE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid VENUE_TIMEZONE: %w", op, err)
	}

	migrate, err := boolEnv("MIGRATE_ON_START", false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Holds:    holdsCfg,
		Booking: BookingConfig{
			Deadline: deadline,
			Location: loc,
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		MigrateOnStart: migrate,
	}, nil
}

func strEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

// durationEnv accepts Go durations ("90s", "2h") or a bare number of minutes.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	if mins, err := strconv.Atoi(s); err == nil {
		return time.Duration(mins) * time.Minute, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel     slog.Level
	Server       ServerConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Upstream     UpstreamConfig
	Kafka        KafkaConfig
	Sessions     SessionsConfig
	Availability AvailabilityConfig
	RateLimit    RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// FlightCacheTTL is how long flight details stay cached.
	FlightCacheTTL time.Duration
	IdempotencyTTL time.Duration
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

type UpstreamConfig struct {
	FlightServiceURL  string
	BookingServiceURL string
	Timeout           time.Duration
	MaxRetries        int
}

// KafkaConfig is optional; without brokers submission events are dropped.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type SessionsConfig struct {
	IdleTTL       time.Duration
	SubmitTimeout time.Duration
}

type AvailabilityConfig struct {
	Interval time.Duration
	Debounce time.Duration
}

type RateLimitConfig struct {
	ManualChecks int
	Window       time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	logLevel, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	serverPort, err := getInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: getEnv("SERVER_HOST", "localhost"),
		Port: serverPort,
	}

	postgresPort, err := getInt("POSTGRES_PORT", 5432)
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

	postgresMaxConns, err := getInt("POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     postgresPort,
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		MaxConns: int32(postgresMaxConns),
	}

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	flightCacheTTL, err := getDuration("FLIGHT_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	idempotencyTTL, err := getDuration("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
		Password:       os.Getenv("REDIS_PASSWORD"),
		DB:             redisDB,
		FlightCacheTTL: flightCacheTTL,
		IdempotencyTTL: idempotencyTTL,
	}

	flightURL := os.Getenv("FLIGHT_SERVICE_URL")
	if flightURL == "" {
		return nil, fmt.Errorf("%s: missing FLIGHT_SERVICE_URL", op)
	}

	bookingURL := os.Getenv("BOOKING_SERVICE_URL")
	if bookingURL == "" {
		return nil, fmt.Errorf("%s: missing BOOKING_SERVICE_URL", op)
	}

	upstreamTimeout, err := getDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	upstreamRetries, err := getInt("UPSTREAM_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	upstreamCfg := UpstreamConfig{
		FlightServiceURL:  strings.TrimRight(flightURL, "/"),
		BookingServiceURL: strings.TrimRight(bookingURL, "/"),
		Timeout:           upstreamTimeout,
		MaxRetries:        upstreamRetries,
	}

	kafkaCfg := KafkaConfig{
		Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
		Topic:   getEnv("KAFKA_TOPIC", "booking-submissions"),
	}

	idleTTL, err := getDuration("SESSION_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	submitTimeout, err := getDuration("SUBMIT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	checkInterval, err := getDuration("CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	checkDebounce, err := getDuration("CHECK_DEBOUNCE", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	manualChecks, err := getInt("RATE_LIMIT_MANUAL_CHECKS", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rateWindow, err := getDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Config{
		LogLevel: logLevel,
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Upstream: upstreamCfg,
		Kafka:    kafkaCfg,
		Sessions: SessionsConfig{
			IdleTTL:       idleTTL,
			SubmitTimeout: submitTimeout,
		},
		Availability: AvailabilityConfig{
			Interval: checkInterval,
			Debounce: checkDebounce,
		},
		RateLimit: RateLimitConfig{
			ManualChecks: manualChecks,
			Window:       rateWindow,
		},
	}, nil
}

// DSN builds the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
		p.SSLMode,
	)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
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

func getDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return l, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package hub parses hub command configuration and starts the server.
package hub

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/automatehub/automatehub/internal/platform/cmd"
	"github.com/automatehub/automatehub/internal/platform/config"
	"github.com/automatehub/automatehub/internal/platform/logging"
	server "github.com/automatehub/automatehub/internal/services/hub/app"
)

// Config holds hub command configuration.
type Config struct {
	HTTPAddr            string        `env:"AUTOMATEHUB_HTTP_ADDR"             envDefault:":8080"`
	GRPCAddr            string        `env:"AUTOMATEHUB_GRPC_ADDR"             envDefault:":8081"`
	DBPath              string        `env:"AUTOMATEHUB_DB_PATH"               envDefault:"data/automatehub.db"`
	JWTSecret           string        `env:"AUTOMATEHUB_JWT_SECRET"`
	JWTIssuer           string        `env:"AUTOMATEHUB_JWT_ISSUER"            envDefault:"automatehub"`
	TokenTTL            time.Duration `env:"AUTOMATEHUB_TOKEN_TTL"             envDefault:"24h"`
	AllowedOrigins      string        `env:"AUTOMATEHUB_ALLOWED_ORIGINS"`
	StripeSecretKey     string        `env:"AUTOMATEHUB_STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `env:"AUTOMATEHUB_STRIPE_WEBHOOK_SECRET"`
	FeeBPS              int64         `env:"AUTOMATEHUB_FEE_BPS"               envDefault:"1000"`
	DefaultCurrency     string        `env:"AUTOMATEHUB_DEFAULT_CURRENCY"      envDefault:"usd"`
	KafkaBrokers        string        `env:"AUTOMATEHUB_KAFKA_BROKERS"`
	KafkaTopicPrefix    string        `env:"AUTOMATEHUB_KAFKA_TOPIC_PREFIX"    envDefault:"automatehub"`
	LogLevel            string        `env:"AUTOMATEHUB_LOG_LEVEL"             envDefault:"info"`
	LogFormat           string        `env:"AUTOMATEHUB_LOG_FORMAT"            envDefault:"json"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "comma separated CORS origins")
	fs.StringVar(&cfg.KafkaBrokers, "kafka-brokers", cfg.KafkaBrokers, "comma separated Kafka brokers")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json or console)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("AUTOMATEHUB_JWT_SECRET is required")
	}
	return cfg, nil
}

// Run builds the hub and serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(entrypoint.ServiceHub, cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceHub, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:            cfg.HTTPAddr,
			GRPCAddr:            cfg.GRPCAddr,
			DBPath:              cfg.DBPath,
			JWTSecret:           cfg.JWTSecret,
			JWTIssuer:           cfg.JWTIssuer,
			TokenTTL:            cfg.TokenTTL,
			AllowedOrigins:      config.SplitList(cfg.AllowedOrigins),
			StripeSecretKey:     cfg.StripeSecretKey,
			StripeWebhookSecret: cfg.StripeWebhookSecret,
			FeeBPS:              cfg.FeeBPS,
			DefaultCurrency:     cfg.DefaultCurrency,
			KafkaBrokers:        config.SplitList(cfg.KafkaBrokers),
			KafkaTopicPrefix:    cfg.KafkaTopicPrefix,
			Logger:              logger,
		}); err != nil {
			return fmt.Errorf("serve hub: %w", err)
		}
		return nil
	})
}

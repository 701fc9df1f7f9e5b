// Package config reads the service configuration from the environment and builds
// the engine's dependencies from it.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/escrow-settlement/pkg/escrow"
	"github.com/chris/escrow-settlement/pkg/fees"
	"github.com/chris/escrow-settlement/pkg/gateway"
	"github.com/chris/escrow-settlement/pkg/gateway/intasend"
	"github.com/chris/escrow-settlement/pkg/gateway/paystack"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage"
	"github.com/chris/escrow-settlement/pkg/storage/dynamodb"
	"github.com/chris/escrow-settlement/pkg/storage/memory"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

// Config is the validated service configuration.
type Config struct {
	HTTPPort      string
	LogLevel      slog.Level
	StorageDriver string
	Tables        dynamodb.Tables

	NotificationsQueueURL string
	WebSocketAPIEndpoint  string
	JWTSecret             []byte

	MinimumWithdrawal  int64
	DisputableStatuses []models.PaymentStatus
	AdminUserIDs       []string
	PublicBaseURL      string
	Currency           string

	FeeRulesPath   string
	DefaultFeeRate decimal.Decimal

	// SeedItemsPath is a JSON list of catalog items loaded into the memory store.
	SeedItemsPath string

	GatewayTimeout     time.Duration
	StuckWithdrawalAge time.Duration
	Paystack           paystack.Config
	IntaSend           intasend.Config
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		HTTPPort:      p.str("HTTP_PORT", "8080"),
		LogLevel:      p.level("LOG_LEVEL"),
		StorageDriver: p.str("STORAGE_DRIVER", DriverDynamoDB),
		Tables: dynamodb.Tables{
			Payments:    getenv("DYNAMODB_PAYMENTS_TABLE_NAME"),
			Earnings:    getenv("DYNAMODB_EARNINGS_TABLE_NAME"),
			Withdrawals: getenv("DYNAMODB_WITHDRAWALS_TABLE_NAME"),
			Disputes:    getenv("DYNAMODB_DISPUTES_TABLE_NAME"),
			Accounts:    getenv("DYNAMODB_ACCOUNTS_TABLE_NAME"),
			Items:       getenv("DYNAMODB_ITEMS_TABLE_NAME"),
			Connections: getenv("DYNAMODB_CONNECTIONS_TABLE_NAME"),
		},
		NotificationsQueueURL: getenv("NOTIFICATIONS_QUEUE_URL"),
		WebSocketAPIEndpoint:  getenv("WEBSOCKET_API_ENDPOINT"),
		JWTSecret:             []byte(getenv("JWT_SECRET")),
		MinimumWithdrawal:     p.integer("MINIMUM_WITHDRAWAL", 0),
		AdminUserIDs:          p.list("ADMIN_USER_IDS"),
		PublicBaseURL:         strings.TrimRight(getenv("PUBLIC_BASE_URL"), "/"),
		Currency:              p.str("CURRENCY", "NGN"),
		FeeRulesPath:          getenv("FEE_RULES_PATH"),
		SeedItemsPath:         getenv("SEED_ITEMS_PATH"),
		DefaultFeeRate:        p.percent("DEFAULT_FEE_RATE_PERCENT", decimal.NewFromInt(10)),
		GatewayTimeout:        p.duration("GATEWAY_TIMEOUT", gateway.DefaultTimeout),
		StuckWithdrawalAge:    p.duration("STUCK_WITHDRAWAL_AGE", 15*time.Minute),
		Paystack: paystack.Config{
			BaseURL:       getenv("PAYSTACK_BASE_URL"),
			SecretKey:     getenv("PAYSTACK_SECRET_KEY"),
			WebhookSecret: getenv("PAYSTACK_WEBHOOK_SECRET"),
		},
		IntaSend: intasend.Config{
			BaseURL:       getenv("INTASEND_BASE_URL"),
			PublicKey:     getenv("INTASEND_PUBLIC_KEY"),
			SecretKey:     getenv("INTASEND_SECRET_KEY"),
			WebhookSecret: getenv("INTASEND_WEBHOOK_SECRET"),
		},
	}
	for _, s := range p.list("DISPUTABLE_STATUSES") {
		status := models.PaymentStatus(s)
		if !status.Valid() {
			p.fail("DISPUTABLE_STATUSES", fmt.Errorf("unknown payment status %q", s))
			continue
		}
		cfg.DisputableStatuses = append(cfg.DisputableStatuses, status)
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that do not depend on which binary is running.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverDynamoDB:
		t := c.Tables
		if t.Payments == "" || t.Earnings == "" || t.Withdrawals == "" || t.Disputes == "" || t.Accounts == "" || t.Items == "" {
			return errors.New("one or more DynamoDB table name environment variables are not set")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverDynamoDB, DriverMemory, c.StorageDriver)
	}
	if c.MinimumWithdrawal < 0 {
		return errors.New("MINIMUM_WITHDRAWAL must not be negative")
	}
	return nil
}

// Logger returns a JSON slog logger at the configured level.
func (c *Config) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

// Escrow returns the engine settings.
func (c *Config) Escrow() escrow.Config {
	return escrow.Config{
		MinimumWithdrawal:  c.MinimumWithdrawal,
		DisputableStatuses: c.DisputableStatuses,
		AdminUserIDs:       c.AdminUserIDs,
		PublicBaseURL:      c.PublicBaseURL,
		Currency:           c.Currency,
	}
}

// FeeCalculator loads the fee rule file, if any. A default rate in the file wins
// over DEFAULT_FEE_RATE_PERCENT.
func (c *Config) FeeCalculator() (*fees.Calculator, error) {
	if c.FeeRulesPath == "" {
		return fees.NewCalculator(nil, c.DefaultFeeRate)
	}
	rules, defaultRate, err := fees.LoadRules(c.FeeRulesPath)
	if err != nil {
		return nil, err
	}
	rate := c.DefaultFeeRate
	if defaultRate != nil {
		rate = *defaultRate
	}
	return fees.NewCalculator(rules, rate)
}

// Gateways builds a client for every gateway that has credentials. Paystack is
// also the payout gateway when its secret key is set.
func (c *Config) Gateways() escrow.Gateways {
	httpClient := gateway.NewHTTPClient(c.GatewayTimeout)
	gws := escrow.Gateways{
		Checkout: map[string]gateway.CheckoutGateway{},
		Webhooks: map[string]gateway.WebhookTranslator{},
	}

	if c.Paystack.SecretKey != "" || c.Paystack.WebhookSecret != "" {
		client := paystack.New(c.Paystack, httpClient)
		gws.Webhooks[paystack.Name] = client
		if c.Paystack.SecretKey != "" {
			gws.Checkout[paystack.Name] = client
			gws.Payout = client
		}
	}
	if c.IntaSend.SecretKey != "" || c.IntaSend.WebhookSecret != "" {
		client := intasend.New(c.IntaSend, httpClient)
		gws.Webhooks[intasend.Name] = client
		if c.IntaSend.SecretKey != "" {
			gws.Checkout[intasend.Name] = client
		}
	}
	return gws
}

// AWS loads the shared SDK configuration.
func (c *Config) AWS(ctx context.Context) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return awsCfg, nil
}

// Storage opens the configured ledger store.
func (c *Config) Storage(awsCfg aws.Config) storage.Storage {
	if c.StorageDriver == DriverMemory {
		slog.Warn("Using in-memory storage; all data is lost on exit")
		return memory.New()
	}
	return dynamodb.New(awsdynamodb.NewFromConfig(awsCfg), c.Tables)
}

// QueueNotifier returns the SQS notifier, or nil when no queue is configured.
func (c *Config) QueueNotifier(awsCfg aws.Config) notify.Notifier {
	if c.NotificationsQueueURL == "" {
		return nil
	}
	return notify.NewSQSNotifier(sqs.NewFromConfig(awsCfg), c.NotificationsQueueURL)
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
}

func (p *parser) str(key, fallback string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (p *parser) list(key string) []string {
	var out []string
	for _, part := range strings.Split(p.getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) integer(key string, fallback int64) int64 {
	v := p.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
	}
	return d
}

func (p *parser) percent(key string, fallback decimal.Decimal) decimal.Decimal {
	v := p.str(key, "")
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, err)
	}
	return d
}

func (p *parser) level(key string) slog.Level {
	var level slog.Level
	if v := p.str(key, ""); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			p.fail(key, err)
		}
	}
	return level
}

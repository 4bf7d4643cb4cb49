package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/earnzy/earnzy/internal/cache"
	"github.com/earnzy/earnzy/internal/config"
	"github.com/earnzy/earnzy/internal/env"
	"github.com/earnzy/earnzy/internal/errHandler"
	"github.com/earnzy/earnzy/internal/helper"
	"github.com/earnzy/earnzy/internal/policy"
	"github.com/earnzy/earnzy/internal/repository"
	"github.com/earnzy/earnzy/internal/smtp"
	"github.com/earnzy/earnzy/internal/stream"
	"github.com/earnzy/earnzy/internal/wallet"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

// Essential services and resources are exposed to the application
// this makes it possible for methods to have access to these items when they need them
type Application struct {
	Config       config.Config
	DB           repository.Database
	Logger       *slog.Logger
	Mailer       *smtp.Mailer
	Cache        *cache.Cache
	Policy       *policy.Policy
	Engine       *wallet.Engine
	Helper       *helper.HelperRepository
	Kafka        *stream.KafkaStream
	WG           *sync.WaitGroup
	errorHandler *errHandler.ErrorHandler
}

func NewApplication(logger *slog.Logger) (*Application, error) {
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", "error", err)
	}

	var cfg config.Config

	// config values are loaded from the .env file
	// Default values are provided for these items and these should strictly be values for development mode only
	// make sure no production-level value is exposed as default value here
	cfg.BaseURL = env.GetString("BASE_URL", "http://localhost:4444")
	cfg.HttpPort = env.GetInt("HTTP_PORT", 4444)

	cfg.Db.Dsn = env.GetString("DB_DSN", "user:pass@localhost:5432/db")
	cfg.Db.Automigrate = env.GetBool("DB_AUTOMIGRATE", true)

	cfg.Jwt.SecretKey = env.GetString("JWT_SECRET_KEY", "ajf5nx3qmp6zquevllxocxqvyz42ypuo")

	// server errors won't be sent via email if the NOTIFICATIONS_EMAIL wasn't set in the .env file
	cfg.Notifications.Email = env.GetString("NOTIFICATIONS_EMAIL", "")

	cfg.Smtp.Host = env.GetString("SMTP_HOST", "example.smtp.host")
	cfg.Smtp.Port = env.GetInt("SMTP_PORT", 25)
	cfg.Smtp.Username = env.GetString("SMTP_USERNAME", "example_username")
	cfg.Smtp.Password = env.GetString("SMTP_PASSWORD", "pa55word")
	cfg.Smtp.From = env.GetString("SMTP_FROM", "Earnzy <no_reply@earnzy.app>")

	cfg.RedisServer = env.GetString("REDIS_SERVER", "localhost:6379")
	cfg.KafkaServers = env.GetString("KAFKA_SERVERS", "localhost:9092")

	db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	mailer, err := smtp.NewMailer(cfg.Smtp.Host, cfg.Smtp.Port, cfg.Smtp.Username, cfg.Smtp.Password, cfg.Smtp.From)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	redisCache := cache.New(cfg.RedisServer, 0)

	// The reward policy is read once at startup; a missing or broken override
	// document leaves the defaults in effect.
	rewardPolicy := policy.Load(redisCache, logger)

	errorHandler := errHandler.New(cfg.Notifications.Email, cfg.BaseURL, mailer, logger)

	wg := &sync.WaitGroup{}
	helperRepo := helper.New(&cfg.BaseURL, wg, errorHandler)

	kafkaStream := stream.New(cfg.KafkaServers, logger)

	engine := wallet.New(&wallet.Engine{
		Wallets:      db.Wallet(),
		Transactions: db.Transaction(),
		Withdrawals:  db.Withdrawal(),
		Policy:       rewardPolicy,
		Logger:       logger,
		BeginTx: func(ctx context.Context) (*sqlx.Tx, error) {
			return db.BeginTx(ctx, nil)
		},
	})

	app := &Application{
		Config:       cfg,
		DB:           db,
		Logger:       logger,
		Mailer:       mailer,
		Cache:        redisCache,
		Policy:       rewardPolicy,
		Engine:       engine,
		Helper:       helperRepo,
		Kafka:        kafkaStream,
		WG:           wg,
		errorHandler: errorHandler,
	}

	return app, nil
}

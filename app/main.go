package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sushihentaime/blogpipe/internal/blogservice"
	"github.com/sushihentaime/blogpipe/internal/commentservice"
	"github.com/sushihentaime/blogpipe/internal/common"
	"github.com/sushihentaime/blogpipe/internal/config"
	"github.com/sushihentaime/blogpipe/internal/mailservice"
	"github.com/sushihentaime/blogpipe/internal/userservice"
)

type application struct {
	config          *config.Config
	logger          *slog.Logger
	db              *sql.DB
	broker          brokerHealth
	metricsRegistry *common.Metrics
	userService     *userservice.UserService
	blogService     *blogservice.BlogService
	commentService  *commentservice.CommentService
	wg              sync.WaitGroup
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("application stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	db, err := common.NewDB(cfg.DSN(), cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBMaxIdleTime)
	if err != nil {
		return err
	}
	defer common.CloseDB(db)

	if cfg.DBMigrate {
		m, err := common.MigrateDB(cfg.MigrationsPath, cfg.DSN())
		if err != nil {
			return err
		}
		m.Close()
		logger.Info("database migrations applied", slog.String("source", cfg.MigrationsPath))
	}

	broker, err := common.NewMessageBroker(cfg.AMQPURI())
	if err != nil {
		return err
	}
	defer broker.Close()

	if err := common.SetupBlogQueue(broker); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if c, ok := cache.(io.Closer); ok {
		defer c.Close()
	}

	metrics := common.NewMetrics()

	// user.created has no subscriber unless the welcome mail is configured
	var events common.MessageProducer
	if cfg.MailEnabled() {
		if err := common.SetupUserExchange(broker); err != nil {
			return err
		}

		mailService := mailservice.NewMailService(broker, cfg.MailHost, cfg.MailUser, cfg.MailPassword, cfg.MailSender, cfg.MailPort, logger)
		if err := mailService.SendWelcomeEmail(); err != nil {
			return err
		}
		defer mailService.Close()

		events = broker
	}

	app := &application{
		config:          cfg,
		logger:          logger,
		db:              db,
		broker:          broker,
		metricsRegistry: metrics,
		userService:     userservice.NewUserService(db, cache, events, logger, metrics),
		blogService:     blogservice.NewBlogService(db, cache, broker, logger, metrics),
		commentService:  commentservice.NewCommentService(db, logger),
	}

	if cfg.ConsumerEnabled {
		consumer := blogservice.NewConsumer(db, broker, "blogpipe-api", cfg.ConsumerTimeout, logger, metrics)
		app.background("blog consumer", func() error {
			return consumer.Run(ctx)
		})
	}

	return app.serve(ctx)
}

// newCache returns a redis cache when REDIS_ADDR is set and an in-process cache otherwise.
func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (common.Cache, error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory cache")
		return common.NewMemoryCache(common.CacheTTL, 2*common.CacheTTL), nil
	}

	rc, err := common.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}

	logger.Info("using redis cache", slog.String("addr", cfg.RedisAddr))

	return rc, nil
}

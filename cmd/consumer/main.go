// Command consumer drains BlogQueue into postgres without serving the HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sushihentaime/blogpipe/internal/blogservice"
	"github.com/sushihentaime/blogpipe/internal/common"
	"github.com/sushihentaime/blogpipe/internal/config"
)

type options struct {
	configFile  string
	name        string
	timeout     time.Duration
	metricsAddr string
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("consumer stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "consumer",
		Short:         "Persist blog submissions queued on BlogQueue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, logger, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", ".env", "path to the env config file")
	flags.StringVar(&opts.name, "name", "blogpipe-consumer", "consumer tag reported to rabbitmq")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per message store timeout, overrides CONSUMER_TIMEOUT")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address when set")

	return cmd
}

func run(ctx context.Context, logger *slog.Logger, opts *options) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}

	timeout := cfg.ConsumerTimeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	db, err := common.NewDB(cfg.DSN(), cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBMaxIdleTime)
	if err != nil {
		return err
	}
	defer common.CloseDB(db)

	broker, err := common.NewMessageBroker(cfg.AMQPURI())
	if err != nil {
		return err
	}
	defer broker.Close()

	if err := common.SetupBlogQueue(broker); err != nil {
		return err
	}

	metrics := common.NewMetrics()
	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		defer srv.Close()

		logger.Info("serving metrics", slog.String("addr", opts.metricsAddr))
	}

	consumer := blogservice.NewConsumer(db, broker, opts.name, timeout, logger, metrics)

	return consumer.Run(ctx)
}

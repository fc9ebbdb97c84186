package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"copytrader/internal/api"
	apperrors "copytrader/internal/errors"
	"copytrader/internal/feed"
	"copytrader/internal/kafka"
	"copytrader/internal/notify"
	"copytrader/internal/resilience"
	"copytrader/internal/routine"
	"copytrader/internal/store"
	"copytrader/internal/stream"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run signal sources, the router and the REST API",
		Long: `serve starts the signal hub and routes every incoming expert signal to all
users following that expert. Signals come from the mock feed, Kafka and
POST /signals, depending on configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				app.Config.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: http.addr)")
	return cmd
}

func (a *App) serve(ctx context.Context) error {
	cfg := a.Config
	logger := a.Logger

	var publisher *kafka.TransactionPublisher
	if cfg.Publish.KafkaEnabled && a.service == nil {
		publisher = kafka.NewTransactionPublisher(cfg.Publish.KafkaBrokers, cfg.Publish.KafkaTopic)
		a.publisher = publisher
		a.closers = append(a.closers, publisher)
	}

	svc, err := a.Service()
	if err != nil {
		return err
	}

	hubCfg := stream.DefaultHubConfig()
	hubCfg.BufferSize = cfg.Signals.BufferSize
	hub := stream.NewHubWithConfig(hubCfg, logger)

	checker := resilience.NewChecker(2 * time.Second)
	kv := a.KV
	checker.Register("store", resilience.PingCheck(func(ctx context.Context) error {
		_, err := kv.Get(ctx, store.UsersKey)
		if apperrors.Is(err, apperrors.ErrDataNotFound) {
			return nil
		}
		return err
	}))
	if publisher != nil {
		checker.Register("kafka_publish", resilience.BreakerCheck(publisher.Breaker()))
	}
	if ch, ok := a.notifier.Channel("webhook"); ok {
		if wh, ok := ch.(*notify.WebhookChannel); ok {
			checker.Register("webhook", resilience.BreakerCheck(wh.Breaker()))
		}
	}

	_, srv := api.NewServer(cfg.HTTP, api.Deps{
		Service: svc,
		Sink:    hub,
		Health:  checker,
		Logger:  logger,
	})

	g, ctx := errgroup.WithContext(ctx)

	// Subscribe before the hub runs so no early signal is missed.
	signals := hub.Subscribe(stream.AllExperts, "service")
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return svc.Consume(ctx, signals) })

	if cfg.Signals.MockEnabled {
		mock := feed.NewMockSource(svc.Catalog(), hub, cfg.Signals.MockInterval, logger)
		m := routine.NewManager(ctx)
		if err := mock.Start(m); err != nil {
			m.ShutdownAll()
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			m.ShutdownAll()
			return nil
		})
		logger.Info().Dur("interval", cfg.Signals.MockInterval).Msg("Mock signal feed started")
	}

	if cfg.Signals.KafkaEnabled {
		consumer := kafka.NewSignalConsumer(cfg.Signals, logger)
		a.closers = append(a.closers, consumer)
		g.Go(func() error { return consumer.Run(ctx, hub) })
		logger.Info().Str("topic", cfg.Signals.KafkaTopic).Msg("Kafka signal consumer started")
	}

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

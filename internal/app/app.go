package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gozon/order-tracking/internal/config"
	"gozon/order-tracking/internal/httpapi"
	"gozon/order-tracking/internal/order"
	"gozon/order-tracking/internal/storage"
	"gozon/order-tracking/internal/websocket"
	"gozon/order-tracking/pkg/contracts"
	"gozon/order-tracking/pkg/messaging"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.MemoryStore
	orderSvc  *order.Service
	processor *order.Processor
	wsHub     *websocket.Hub
	publisher messaging.Publisher
	notifier  messaging.Publisher
	consumer  *messaging.Consumer
	httpSrv   *http.Server
}

// New wires the pipeline. The memory broker keeps the log in process, which
// is enough for local runs and tests.
func New(_ context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store := storage.NewMemoryStore()
	wsHub := websocket.NewHub(logger)

	var (
		publisher messaging.Publisher
		source    messaging.Source
	)
	switch cfg.Broker {
	case config.BrokerKafka:
		kcfg := messaging.KafkaConfig{
			Brokers:        cfg.KafkaBrokers,
			Topic:          contracts.OrdersTopic,
			GroupID:        cfg.KafkaGroupID,
			ClientID:       cfg.KafkaClientID,
			PublishTimeout: cfg.PublishTimeout,
		}
		publisher = messaging.NewKafkaPublisher(kcfg, logger)
		source = messaging.NewKafkaSource(kcfg, logger)
	case config.BrokerMemory:
		memLog := messaging.NewMemoryLog(cfg.MemoryPartitions)
		memLog.CreateTopic(contracts.OrdersTopic)
		publisher = memLog.Publisher(contracts.OrdersTopic)
		source = memLog.Source(contracts.OrdersTopic, cfg.KafkaGroupID)
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}

	var notifier messaging.Publisher = messaging.NoopPublisher{}
	if cfg.RabbitURL != "" {
		rabbit, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.StatusExchange)
		if err != nil {
			publisher.Close()
			source.Close()
			return nil, err
		}
		notifier = rabbit
	}

	processor := order.NewProcessor(store, logger,
		order.WithDelay(order.FixedDelay(cfg.ProcessingDelay)),
		order.WithNotifier(order.MultiNotifier{
			wsHub,
			order.NewEventNotifier(notifier, cfg.PublishTimeout, logger),
		}),
	)

	consumer := messaging.NewConsumer(source, messaging.ConsumerConfig{
		Topic:               contracts.OrdersTopic,
		PollTimeout:         cfg.PollTimeout,
		StartupDelay:        cfg.StartupDelay,
		UnknownTopicBackoff: cfg.UnknownTopicBackoff,
		ErrorBackoff:        cfg.ConsumeBackoff,
	}, logger)

	orderSvc := order.NewService(store, order.NewEventPublisher(publisher, logger), logger)
	wsHandler := websocket.NewHandler(wsHub, orderSvc, logger)
	api := httpapi.NewServer(orderSvc, wsHandler.ServeWS, logger)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		orderSvc:  orderSvc,
		processor: processor,
		wsHub:     wsHub,
		publisher: publisher,
		notifier:  notifier,
		consumer:  consumer,
		httpSrv:   httpSrv,
	}, nil
}

// Handler exposes the HTTP API without starting a listener.
func (a *App) Handler() http.Handler {
	return a.httpSrv.Handler
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go a.wsHub.Run(ctx)

	go func() {
		errCh <- a.consumer.Start(ctx, a.processor.HandleMessage)
	}()

	go func() {
		a.logger.Info("order tracking http server listening", "addr", a.cfg.HTTPAddr, "broker", a.cfg.Broker)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	if err := a.consumer.Close(); err != nil {
		a.logger.Warn("close consumer", "err", err)
	}
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("close publisher", "err", err)
	}
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn("close status notifier", "err", err)
	}
	a.logger.Info("order tracking stopped", "orders", a.store.Len())
}

func NewLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func Run() error {
	cfg := config.Load()
	logger := NewLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// Source is a subscription to one topic.
type Source interface {
	Subscribe(ctx context.Context) error
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// Handler processes one message. A nil error or any error other than the
// consumer's own cancellation marks the message as done and its offset is
// committed.
type Handler func(ctx context.Context, msg Message) error

type ConsumerConfig struct {
	Topic               string
	PollTimeout         time.Duration
	StartupDelay        time.Duration
	UnknownTopicBackoff time.Duration
	ErrorBackoff        time.Duration
	CommitTimeout       time.Duration
}

func DefaultConsumerConfig(topic string) ConsumerConfig {
	return ConsumerConfig{
		Topic:               topic,
		PollTimeout:         100 * time.Millisecond,
		StartupDelay:        2 * time.Second,
		UnknownTopicBackoff: 5 * time.Second,
		ErrorBackoff:        time.Second,
		CommitTimeout:       5 * time.Second,
	}
}

type SleepFunc func(ctx context.Context, d time.Duration) error

type ConsumerOption func(*Consumer)

// WithSleepFunc replaces the wait used for the startup delay and backoffs.
func WithSleepFunc(fn SleepFunc) ConsumerOption {
	return func(c *Consumer) { c.sleep = fn }
}

type Consumer struct {
	source Source
	cfg    ConsumerConfig
	logger *slog.Logger
	sleep  SleepFunc

	closeOnce sync.Once
	closeErr  error
}

func NewConsumer(source Source, cfg ConsumerConfig, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	defaults := DefaultConsumerConfig(cfg.Topic)
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaults.PollTimeout
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = defaults.CommitTimeout
	}

	c := &Consumer{
		source: source,
		cfg:    cfg,
		logger: logger.With("component", "consumer", "topic", cfg.Topic),
		sleep:  Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs the poll loop until ctx is cancelled, then closes the source.
// It never returns early because of broker or message errors.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	defer func() {
		if err := c.Close(); err != nil {
			c.logger.Warn("close consumer", "err", err)
		}
	}()

	if err := c.sleep(ctx, c.cfg.StartupDelay); err != nil {
		return nil
	}

	c.logger.Info("consumer starting")
	if err := c.source.Subscribe(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("initial subscription failed, topic may not exist yet", "err", err)
	}

	for ctx.Err() == nil {
		backoff := c.poll(ctx, handler)
		if backoff <= 0 {
			continue
		}
		if err := c.sleep(ctx, backoff); err != nil {
			break
		}
	}

	c.logger.Info("consumer shutting down")
	return nil
}

// poll runs one iteration and returns how long to wait before the next one.
func (c *Consumer) poll(ctx context.Context, handler Handler) (backoff time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("unexpected failure in consumer loop", "panic", r)
			backoff = c.cfg.ErrorBackoff
		}
	}()

	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	msg, err := c.source.Fetch(pollCtx)
	cancel()

	if err != nil {
		switch {
		case ctx.Err() != nil:
			return 0
		case errors.Is(err, context.DeadlineExceeded):
			return 0
		case errors.Is(err, ErrUnknownTopic):
			c.logger.Debug("topic not available yet", "err", err)
			return c.cfg.UnknownTopicBackoff
		default:
			c.logger.Warn("consume error", "err", err)
			return c.cfg.ErrorBackoff
		}
	}

	if len(msg.Value) == 0 {
		c.commit(ctx, msg)
		return 0
	}

	if err := c.handle(ctx, handler, msg); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			c.logger.Info("message processing interrupted, offset left uncommitted",
				"partition", msg.Partition, "offset", msg.Offset)
			return 0
		}
		c.logger.Error("message dropped",
			"partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key), "err", err)
	}
	c.commit(ctx, msg)
	return 0
}

func (c *Consumer) handle(ctx context.Context, handler Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg Message) {
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CommitTimeout)
	defer cancel()
	if err := c.source.Commit(commitCtx, msg); err != nil {
		c.logger.Warn("commit offset failed", "partition", msg.Partition, "offset", msg.Offset, "err", err)
	}
}

func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.source.Close()
	})
	return c.closeErr
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

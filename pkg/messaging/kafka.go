package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	ClientID       string
	PublishTimeout time.Duration
}

// KafkaPublisher appends messages to a topic and waits for acknowledgement
// from all in-sync replicas. Failed writes are not retried.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  newKafkaWriter(cfg, logger),
		timeout: cfg.PublishTimeout,
	}
}

func newKafkaWriter(cfg KafkaConfig, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            1,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.PublishTimeout,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
		ErrorLogger:            kafkaLogger(logger),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(routingKey),
		Value: payload,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return &PublishError{Topic: p.writer.Topic, Key: routingKey, Err: err}
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaSource reads a topic as a member of a consumer group. Offsets are
// committed explicitly through Commit.
type KafkaSource struct {
	reader  *kafka.Reader
	brokers []string
	topic   string
}

func NewKafkaSource(cfg KafkaConfig, logger *slog.Logger) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
		MaxWait:        100 * time.Millisecond,
		SessionTimeout: 6 * time.Second,
		ErrorLogger:    kafkaLogger(logger),
	})
	return &KafkaSource{reader: reader, brokers: cfg.Brokers, topic: cfg.Topic}
}

// Subscribe checks that the topic exists. The reader joins the group lazily
// on the first fetch.
func (s *KafkaSource) Subscribe(ctx context.Context) error {
	if len(s.brokers) == 0 {
		return &ConsumeError{Topic: s.topic, Err: errors.New("no brokers configured")}
	}

	conn, err := kafka.DialContext(ctx, "tcp", s.brokers[0])
	if err != nil {
		return &ConsumeError{Topic: s.topic, Err: fmt.Errorf("dial %s: %w", s.brokers[0], err)}
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(s.topic)
	if err != nil {
		return s.consumeError(err)
	}
	if len(partitions) == 0 {
		return &ConsumeError{Topic: s.topic, Err: ErrUnknownTopic}
	}
	return nil
}

func (s *KafkaSource) Fetch(ctx context.Context) (Message, error) {
	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}
		if errors.Is(err, io.EOF) {
			return Message{}, ErrClosed
		}
		return Message{}, s.consumeError(err)
	}
	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Time:      msg.Time,
	}, nil
}

func (s *KafkaSource) Commit(ctx context.Context, msg Message) error {
	return s.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}

func (s *KafkaSource) consumeError(err error) error {
	if errors.Is(err, kafka.UnknownTopicOrPartition) {
		return &ConsumeError{Topic: s.topic, Err: fmt.Errorf("%w: %w", ErrUnknownTopic, err)}
	}
	return &ConsumeError{Topic: s.topic, Err: err}
}

func kafkaLogger(logger *slog.Logger) kafka.Logger {
	if logger == nil {
		return nil
	}
	l := logger.With("component", "kafka")
	return kafka.LoggerFunc(func(msg string, args ...interface{}) {
		l.Warn(fmt.Sprintf(msg, args...))
	})
}

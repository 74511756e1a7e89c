package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BrokerKafka  = "kafka"
	BrokerMemory = "memory"
)

type Config struct {
	HTTPAddr            string
	Broker              string
	MemoryPartitions    int
	KafkaBrokers        []string
	KafkaGroupID        string
	KafkaClientID       string
	PublishTimeout      time.Duration
	PollTimeout         time.Duration
	ProcessingDelay     time.Duration
	StartupDelay        time.Duration
	UnknownTopicBackoff time.Duration
	ConsumeBackoff      time.Duration
	RabbitURL           string
	StatusExchange      string
	ShutdownGracePeriod time.Duration
	LogLevel            string
	LogFormat           string
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// Load reads the configuration from the environment. Values from a .env file
// in the working directory are loaded first without overriding variables
// that are already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:            getEnv("ORDERS_HTTP_ADDR", ":8080"),
		Broker:              strings.ToLower(getEnv("ORDERS_BROKER", BrokerKafka)),
		MemoryPartitions:    parseInt("ORDERS_MEMORY_PARTITIONS", 3),
		KafkaBrokers:        parseList("ORDERS_KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:        getEnv("ORDERS_KAFKA_GROUP_ID", "order-consumer-group"),
		KafkaClientID:       getEnv("ORDERS_KAFKA_CLIENT_ID", "order-producer"),
		PublishTimeout:      parseDuration("ORDERS_PUBLISH_TIMEOUT", 5*time.Second),
		PollTimeout:         parseDuration("ORDERS_POLL_TIMEOUT", 100*time.Millisecond),
		ProcessingDelay:     parseDuration("ORDERS_PROCESSING_DELAY", 200*time.Millisecond),
		StartupDelay:        parseDuration("ORDERS_CONSUMER_STARTUP_DELAY", 2*time.Second),
		UnknownTopicBackoff: parseDuration("ORDERS_UNKNOWN_TOPIC_BACKOFF", 5*time.Second),
		ConsumeBackoff:      parseDuration("ORDERS_CONSUME_BACKOFF", time.Second),
		RabbitURL:           getEnv("ORDERS_RABBIT_URL", ""),
		StatusExchange:      getEnv("ORDERS_STATUS_EXCHANGE", "orders.status"),
		ShutdownGracePeriod: parseDuration("ORDERS_SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:            getEnv("ORDERS_LOG_LEVEL", "info"),
		LogFormat:           getEnv("ORDERS_LOG_FORMAT", "text"),
	}
}

func parseDuration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return d
	}
	return def
}

func parseInt(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	return def
}

func parseList(key string, def []string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

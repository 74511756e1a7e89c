package messaging

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// MemoryLog is an in-process partitioned append-only log. Messages with the
// same key land on the same partition. Consumer groups keep committed offsets
// so a new Source for a group resumes after the last commit.
type MemoryLog struct {
	mu         sync.Mutex
	partitions int
	topics     map[string][][]Message
	offsets    map[string][]int64
	notify     chan struct{}
}

func NewMemoryLog(partitions int) *MemoryLog {
	if partitions < 1 {
		partitions = 1
	}
	return &MemoryLog{
		partitions: partitions,
		topics:     make(map[string][][]Message),
		offsets:    make(map[string][]int64),
		notify:     make(chan struct{}),
	}
}

func (l *MemoryLog) CreateTopic(topic string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.createTopicLocked(topic)
}

func (l *MemoryLog) createTopicLocked(topic string) [][]Message {
	parts, ok := l.topics[topic]
	if !ok {
		parts = make([][]Message, l.partitions)
		l.topics[topic] = parts
	}
	return parts
}

// Append writes a message, creating the topic on first use.
func (l *MemoryLog) Append(topic, key string, payload []byte) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	parts := l.createTopicLocked(topic)
	p := l.partitionFor(key)
	msg := Message{
		Topic:     topic,
		Partition: p,
		Offset:    int64(len(parts[p])),
		Key:       []byte(key),
		Value:     append([]byte(nil), payload...),
		Time:      time.Now().UTC(),
	}
	parts[p] = append(parts[p], msg)

	close(l.notify)
	l.notify = make(chan struct{})
	return msg
}

func (l *MemoryLog) partitionFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(l.partitions))
}

// Committed returns the committed offsets of a group on a topic, one per
// partition.
func (l *MemoryLog) Committed(topic, group string) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.offsets[groupKey(topic, group)]...)
}

func (l *MemoryLog) Publisher(topic string) *MemoryPublisher {
	return &MemoryPublisher{log: l, topic: topic}
}

func (l *MemoryLog) Source(topic, group string) *MemorySource {
	return &MemorySource{log: l, topic: topic, group: group}
}

func groupKey(topic, group string) string {
	return topic + "/" + group
}

type MemoryPublisher struct {
	log   *MemoryLog
	topic string
}

func (p *MemoryPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return &PublishError{Topic: p.topic, Key: routingKey, Err: err}
	}
	p.log.Append(p.topic, routingKey, payload)
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

type MemorySource struct {
	log    *MemoryLog
	topic  string
	group  string
	next   []int64
	cursor int
	closed bool
}

func (s *MemorySource) Subscribe(ctx context.Context) error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	if _, ok := s.log.topics[s.topic]; !ok {
		return &ConsumeError{Topic: s.topic, Err: ErrUnknownTopic}
	}
	return nil
}

// Fetch blocks until a message is available or ctx is done.
func (s *MemorySource) Fetch(ctx context.Context) (Message, error) {
	for {
		s.log.mu.Lock()
		if s.closed {
			s.log.mu.Unlock()
			return Message{}, ErrClosed
		}
		parts, ok := s.log.topics[s.topic]
		if !ok {
			s.log.mu.Unlock()
			return Message{}, &ConsumeError{Topic: s.topic, Err: ErrUnknownTopic}
		}
		if s.next == nil {
			s.next = make([]int64, len(parts))
			copy(s.next, s.log.offsets[groupKey(s.topic, s.group)])
		}
		for i := 0; i < len(parts); i++ {
			p := (s.cursor + i) % len(parts)
			if s.next[p] < int64(len(parts[p])) {
				msg := parts[p][s.next[p]]
				s.next[p]++
				s.cursor = p + 1
				s.log.mu.Unlock()
				return msg, nil
			}
		}
		wait := s.log.notify
		s.log.mu.Unlock()

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-wait:
		}
	}
}

func (s *MemorySource) Commit(_ context.Context, msg Message) error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()

	key := groupKey(s.topic, s.group)
	offsets := s.log.offsets[key]
	if len(offsets) < s.log.partitions {
		grown := make([]int64, s.log.partitions)
		copy(grown, offsets)
		offsets = grown
	}
	if next := msg.Offset + 1; next > offsets[msg.Partition] {
		offsets[msg.Partition] = next
	}
	s.log.offsets[key] = offsets
	return nil
}

func (s *MemorySource) Close() error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	s.closed = true
	close(s.log.notify)
	s.log.notify = make(chan struct{})
	return nil
}

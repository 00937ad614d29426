package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/segmentio/kafka-go"

	"github.com/mqy/minichat/chatstore"
)

const (
	// DefaultValueMaxBytes bounds an encoded event, the record only carries a file url.
	DefaultValueMaxBytes = 64 * 1024

	publishTimeout = 3 * time.Second
	transportKafka = "kafka"
)

var errSubscriberClosed = errors.New("feed: subscriber closed")

// KafkaPublisher writes insert events to a topic, keyed by scope key so events of a chat
// stay in one partition.
type KafkaPublisher struct {
	writer        IKafkaWriter
	valueMaxBytes int
}

func NewKafkaPublisher(writer IKafkaWriter, valueMaxBytes int) *KafkaPublisher {
	if valueMaxBytes <= 0 {
		valueMaxBytes = DefaultValueMaxBytes
	}
	return &KafkaPublisher{writer: writer, valueMaxBytes: valueMaxBytes}
}

// NewKafkaWriter creates a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e *Event) error {
	if e == nil || !e.Record.Valid() {
		feedPublished.WithLabelValues("invalid").Inc()
		return fmt.Errorf("publish: invalid event")
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error marshal event: %q, err: %v", e.Record.Id, err)
	}
	if len(value) > p.valueMaxBytes {
		feedPublished.WithLabelValues("oversize").Inc()
		return fmt.Errorf("publish: event exceeds max limit: %d bytes", p.valueMaxBytes)
	}

	km := kafka.Message{
		Key:   []byte(e.Record.Scope().Key()),
		Value: value,
	}

	ctx2, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx2, km); err != nil {
		feedPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("error write to kafka: %w", err)
	}
	feedPublished.WithLabelValues("ok").Inc()
	glog.V(5).Infof("feed: published insert `%s` to %s", e.Record.Id, km.Key)
	return nil
}

// PublishInsert publishes rec as a message insert.
func (p *KafkaPublisher) PublishInsert(ctx context.Context, rec *chatstore.MessageRecord) error {
	return p.Publish(ctx, NewInsertEvent(rec))
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ReaderFactory creates the reader of the live topic.
type ReaderFactory func() IKafkaReader

// KafkaReaderFactory reads partition 0 of topic without a consumer group, from the latest
// offset. Past inserts are loaded by fetch. The live topic is created with a single partition.
func KafkaReaderFactory(brokers []string, topic string) ReaderFactory {
	return func() IKafkaReader {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:   brokers,
			Topic:     topic,
			Partition: 0,
			MinBytes:  1,
			MaxBytes:  10e6,
			MaxWait:   500 * time.Millisecond,
		})
		if err := r.SetOffset(kafka.LastOffset); err != nil {
			glog.Errorf("feed: kafka set offset err: %v", err)
		}
		return r
	}
}

type kafkaTarget struct {
	f      Filter
	h      Handler
	closed int32
}

// KafkaSubscriber implements interface `ISubscriber`. One reader, created by the first
// Subscribe, consumes the topic for the life of the subscriber and fans every event out to
// the current subscriptions.
type KafkaSubscriber struct {
	newReader     ReaderFactory
	valueMaxBytes int

	mu      sync.Mutex
	targets map[uint64]*kafkaTarget
	nextId  uint64
	cancel  context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

func NewKafkaSubscriber(newReader ReaderFactory, valueMaxBytes int) *KafkaSubscriber {
	if valueMaxBytes <= 0 {
		valueMaxBytes = DefaultValueMaxBytes
	}
	return &KafkaSubscriber{
		newReader:     newReader,
		valueMaxBytes: valueMaxBytes,
		targets:       map[uint64]*kafkaTarget{},
	}
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errSubscriberClosed
	}
	if s.cancel == nil {
		s.startLocked()
	}
	s.nextId++
	id := s.nextId
	t := &kafkaTarget{f: f, h: h}
	s.targets[id] = t
	s.mu.Unlock()

	feedSubscriptions.WithLabelValues(transportKafka).Inc()
	glog.V(5).Infof("feed: kafka subscribed, id: %d, filter: %+v", id, f)
	return newSubscription(func() error {
		atomic.StoreInt32(&t.closed, 1)
		s.mu.Lock()
		delete(s.targets, id)
		s.mu.Unlock()
		feedSubscriptions.WithLabelValues(transportKafka).Dec()
		return nil
	}), nil
}

func (s *KafkaSubscriber) startLocked() {
	reader := s.newReader()
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer func() {
			_ = reader.Close()
			s.wg.Done()
		}()
		s.consumeLoop(loopCtx, reader)
	}()
}

// Close stops the reader and waits for the consume loop to exit. Subscribe fails afterwards.
func (s *KafkaSubscriber) Close() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// snapshot returns the current subscriptions.
func (s *KafkaSubscriber) snapshot() []*kafkaTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*kafkaTarget, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, t)
	}
	return out
}

func (s *KafkaSubscriber) consumeLoop(ctx context.Context, reader IKafkaReader) {
	glog.V(5).Info("feed: consume loop enter")
	defer glog.V(5).Info("feed: consume loop exited")

	var sleep time.Duration

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			glog.Errorf("feed: fetch from kafka err: %v", err)
			feedEvents.WithLabelValues(transportKafka, "error").Inc()
			backoff(&sleep)
			if !sleepCtx(ctx, sleep) {
				return
			}
			continue
		}
		sleep = 0

		e := s.decodeKafkaMsg(&msg)
		if e == nil {
			continue
		}
		delivered := false
		for _, t := range s.snapshot() {
			if atomic.LoadInt32(&t.closed) == 1 || !t.f.Match(e) {
				continue
			}
			delivered = true
			t.h(e)
		}
		if delivered {
			feedEvents.WithLabelValues(transportKafka, "delivered").Inc()
		} else {
			feedEvents.WithLabelValues(transportKafka, "filtered").Inc()
		}
	}
}

func (s *KafkaSubscriber) decodeKafkaMsg(msg *kafka.Message) *Event {
	if len(msg.Value) > s.valueMaxBytes {
		glog.Errorf("feed: kafka value out of limit, offset: %d, size: %d", msg.Offset, len(msg.Value))
		feedEvents.WithLabelValues(transportKafka, "invalid").Inc()
		return nil
	}
	var e Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		glog.Errorf("feed: failed to unmarshal kafka msg value: `%s`, error: %v", msg.Value, err)
		feedEvents.WithLabelValues(transportKafka, "invalid").Inc()
		return nil
	}
	return &e
}

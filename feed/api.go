package feed

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/mqy/minichat/chatstore"
)

const (
	TableMessages = "messages"
	EventInsert   = "INSERT"
)

// Event is one row change on the feed. Only message inserts are published.
type Event struct {
	Table  string                   `json:"table"`
	Type   string                   `json:"type"`
	Record *chatstore.MessageRecord `json:"record"`
}

func NewInsertEvent(rec *chatstore.MessageRecord) *Event {
	return &Event{Table: TableMessages, Type: EventInsert, Record: rec}
}

// Filter selects message inserts of a table. Empty Kinds matches every chat kind.
type Filter struct {
	Table string               `json:"table"`
	Kinds []chatstore.ChatKind `json:"kinds,omitempty"`
}

func (f Filter) Match(e *Event) bool {
	if e == nil || e.Type != EventInsert || !e.Record.Valid() {
		return false
	}
	if f.Table != "" && e.Table != f.Table {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if e.Record.ScopeKind == k {
			return true
		}
	}
	return false
}

// Handler is called on the subscriber goroutine for every matching event.
type Handler func(e *Event)

type Subscription interface {
	// Unsubscribe stops delivery. Calling it more than once is a no-op.
	Unsubscribe() error
}

type ISubscriber interface {
	// Subscribe starts delivering events matching f to h. ctx bounds the subscribe call only,
	// delivery lasts until Unsubscribe.
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
}

type IPublisher interface {
	Publish(ctx context.Context, e *Event) error
}

// IKafkaReader reads a partition without a consumer group, there is nothing to commit.
type IKafkaReader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	Close() error
}

type IKafkaWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// subscription runs stop once.
type subscription struct {
	once sync.Once
	stop func() error
	err  error
}

func newSubscription(stop func() error) *subscription {
	return &subscription{stop: stop}
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.stop()
	})
	return s.err
}

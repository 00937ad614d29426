package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqy/minichat/chatstore"
	feed_mock "github.com/mqy/minichat/feed/mock"
)

func testRecord(id string, scope chatstore.Scope) *chatstore.MessageRecord {
	return &chatstore.MessageRecord{
		Id:        id,
		ScopeKind: scope.Kind,
		ScopeId:   scope.Id,
		AuthorId:  "u1",
		Text:      "hello " + id,
		CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func encodeEvent(t *testing.T, e *Event) []byte {
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return b
}

func TestFilterMatch(t *testing.T) {
	global := NewInsertEvent(testRecord("a", chatstore.GlobalScope()))
	group := NewInsertEvent(testRecord("b", chatstore.GroupScope("g1")))

	all := Filter{Table: TableMessages}
	assert.True(t, all.Match(global))
	assert.True(t, all.Match(group))

	onlyGroup := Filter{Table: TableMessages, Kinds: []chatstore.ChatKind{chatstore.ChatKind_Group}}
	assert.False(t, onlyGroup.Match(global))
	assert.True(t, onlyGroup.Match(group))

	assert.False(t, Filter{Table: "users"}.Match(global))
	assert.False(t, all.Match(nil))
	assert.False(t, all.Match(&Event{Table: TableMessages, Type: "DELETE", Record: global.Record}))
	assert.False(t, all.Match(&Event{Table: TableMessages, Type: EventInsert}))
}

func TestSubscriptionUnsubscribeOnce(t *testing.T) {
	var n int32
	sub := newSubscription(func() error {
		atomic.AddInt32(&n, 1)
		return errors.New("closed")
	})
	assert.EqualError(t, sub.Unsubscribe(), "closed")
	assert.EqualError(t, sub.Unsubscribe(), "closed")
	assert.EqualValues(t, 1, atomic.LoadInt32(&n))
}

func TestBackoff(t *testing.T) {
	var d time.Duration
	backoff(&d)
	assert.Equal(t, BackoffMinInterval, d)
	backoff(&d)
	assert.Equal(t, 1500*time.Millisecond, d)

	d = BackoffMaxInterval
	backoff(&d)
	assert.Equal(t, BackoffMinInterval, d)
}

func TestKafkaPublisher(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := feed_mock.NewMockIKafkaWriter(mockCtrl)
	p := NewKafkaPublisher(writer, 0)

	rec := testRecord("m1", chatstore.PersonalScope("u2", "u1"))
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msgs ...kafka.Message) error {
		require.Len(t, msgs, 1)
		assert.Equal(t, "personal-u1_u2", string(msgs[0].Key))

		var e Event
		require.NoError(t, json.Unmarshal(msgs[0].Value, &e))
		assert.Equal(t, TableMessages, e.Table)
		assert.Equal(t, EventInsert, e.Type)
		assert.Equal(t, rec.Id, e.Record.Id)
		return nil
	})
	assert.NoError(t, p.PublishInsert(context.Background(), rec))

	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("leader not available"))
	assert.Error(t, p.PublishInsert(context.Background(), rec))

	// Invalid and oversize events never reach the writer.
	assert.Error(t, p.PublishInsert(context.Background(), &chatstore.MessageRecord{Id: "x"}))
	small := NewKafkaPublisher(writer, 16)
	assert.Error(t, small.PublishInsert(context.Background(), rec))
}

// scriptedReader returns a FetchMessage stub serving values in order, then blocking until
// the loop is canceled.
func scriptedReader(values [][]byte) func(ctx context.Context) (kafka.Message, error) {
	var offset int64
	return func(ctx context.Context) (kafka.Message, error) {
		i := atomic.AddInt64(&offset, 1) - 1
		if int(i) < len(values) {
			return kafka.Message{Offset: i, Value: values[i]}, nil
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
}

func TestKafkaSubscriberConsumeLoop(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	reader := feed_mock.NewMockIKafkaReader(mockCtrl)
	s := NewKafkaSubscriber(func() IKafkaReader { return reader }, 0)

	values := [][]byte{
		encodeEvent(t, NewInsertEvent(testRecord("a", chatstore.GroupScope("g1")))),
		[]byte(`{not json`),
		encodeEvent(t, NewInsertEvent(testRecord("b", chatstore.GlobalScope()))),
		encodeEvent(t, NewInsertEvent(testRecord("c", chatstore.GroupScope("g2")))),
	}
	reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(scriptedReader(values)).MinTimes(len(values))
	reader.EXPECT().Close().Return(nil).Times(1)

	got := make(chan string, 10)
	sub, err := s.Subscribe(context.Background(),
		Filter{Table: TableMessages, Kinds: []chatstore.ChatKind{chatstore.ChatKind_Group}},
		func(e *Event) { got <- e.Record.Id })
	require.NoError(t, err)

	for _, want := range []string{"a", "c"} {
		select {
		case id := <-got:
			assert.Equal(t, want, id)
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}

	require.NoError(t, sub.Unsubscribe())
	s.Close()
	assert.Empty(t, got)

	_, err = s.Subscribe(context.Background(), Filter{}, func(*Event) {})
	assert.Equal(t, errSubscriberClosed, err)
}

func TestKafkaSubscriberSharesOneReader(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	reader := feed_mock.NewMockIKafkaReader(mockCtrl)
	var created int32
	s := NewKafkaSubscriber(func() IKafkaReader {
		atomic.AddInt32(&created, 1)
		return reader
	}, 0)

	// nothing to read until the subscriptions below are in place.
	ready := make(chan struct{})
	values := [][]byte{
		encodeEvent(t, NewInsertEvent(testRecord("a", chatstore.GroupScope("g1")))),
		encodeEvent(t, NewInsertEvent(testRecord("b", chatstore.GlobalScope()))),
	}
	next := scriptedReader(values)
	reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(ctx context.Context) (kafka.Message, error) {
		select {
		case <-ready:
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		}
		return next(ctx)
	}).MinTimes(1)
	reader.EXPECT().Close().Return(nil).Times(1)

	groupOnly := Filter{Table: TableMessages, Kinds: []chatstore.ChatKind{chatstore.ChatKind_Group}}
	globalOnly := Filter{Table: TableMessages, Kinds: []chatstore.ChatKind{chatstore.ChatKind_Global}}

	// a replaced subscription, like a scope switch.
	stale, err := s.Subscribe(context.Background(), globalOnly, func(e *Event) {
		t.Errorf("unsubscribed handler got %s", e.Record.Id)
	})
	require.NoError(t, err)
	require.NoError(t, stale.Unsubscribe())

	groups := make(chan string, 10)
	all := make(chan string, 10)
	sub1, err := s.Subscribe(context.Background(), groupOnly, func(e *Event) { groups <- e.Record.Id })
	require.NoError(t, err)
	sub2, err := s.Subscribe(context.Background(), Filter{Table: TableMessages}, func(e *Event) { all <- e.Record.Id })
	require.NoError(t, err)
	close(ready)

	recv := func(ch chan string) string {
		select {
		case id := <-ch:
			return id
		case <-time.After(3 * time.Second):
			t.Fatal("timeout waiting for event")
			return ""
		}
	}
	assert.Equal(t, "a", recv(groups))
	assert.Equal(t, "a", recv(all))
	assert.Equal(t, "b", recv(all))

	require.NoError(t, sub1.Unsubscribe())
	require.NoError(t, sub2.Unsubscribe())
	s.Close()

	assert.EqualValues(t, 1, atomic.LoadInt32(&created))
	assert.Empty(t, groups)
}

func TestKafkaSubscriberCanceledSubscribe(t *testing.T) {
	s := NewKafkaSubscriber(func() IKafkaReader {
		t.Fatal("reader must not be created")
		return nil
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Subscribe(ctx, Filter{}, func(*Event) {})
	assert.Equal(t, context.Canceled, err)
}

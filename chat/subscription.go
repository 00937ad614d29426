package chat

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/mqy/minichat/chatstore"
	"github.com/mqy/minichat/feed"
	"github.com/mqy/minichat/store"
)

const resolveTimeout = 10 * time.Second

type SubState int

const (
	Detached SubState = iota
	Attached
)

func (s SubState) String() string {
	if s == Attached {
		return "attached"
	}
	return "detached"
}

// SubscriptionManager owns the two live subscriptions of a session: message inserts of the
// attached scope, and inserts of every kind for notifications. The latest Attach wins.
type SubscriptionManager struct {
	sub      feed.ISubscriber
	messages store.IMessageStore

	// onMessage gets resolved inserts of the attached scope.
	onMessage func(scopeKey string, rec *chatstore.MessageRecord)
	// onEvent gets raw inserts of every kind.
	onEvent func(rec *chatstore.MessageRecord)

	mu  sync.Mutex
	gen uint64
	// seq is the highest attach sequence seen, older attaches are refused.
	seq       uint64
	state     SubState
	scopeKey  string
	msgSub    feed.Subscription
	notifySub feed.Subscription
}

func NewSubscriptionManager(sub feed.ISubscriber, messages store.IMessageStore,
	onMessage func(scopeKey string, rec *chatstore.MessageRecord),
	onEvent func(rec *chatstore.MessageRecord)) *SubscriptionManager {

	return &SubscriptionManager{
		sub:       sub,
		messages:  messages,
		onMessage: onMessage,
		onEvent:   onEvent,
	}
}

// State returns the state and the attached scope key.
func (m *SubscriptionManager) State() (SubState, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.scopeKey
}

// takeLocked bumps the generation and returns the installed subscriptions.
func (m *SubscriptionManager) takeLocked() []feed.Subscription {
	m.gen++
	subs := []feed.Subscription{m.msgSub, m.notifySub}
	m.msgSub, m.notifySub = nil, nil
	return subs
}

func unsubscribe(subs ...feed.Subscription) {
	for _, s := range subs {
		if s == nil {
			continue
		}
		if err := s.Unsubscribe(); err != nil {
			glog.Errorf("subscription: unsubscribe error: %v", err)
		}
	}
}

// Attach replaces the current subscriptions with ones for scope. seq orders attaches of
// concurrent scope switches: an attach with a seq lower than one already seen is refused and
// Attach returns false. Subscribe failures are logged, the scope stays attached without live
// updates.
func (m *SubscriptionManager) Attach(ctx context.Context, scope chatstore.Scope, seq uint64) bool {
	key := scope.Key()

	m.mu.Lock()
	if seq < m.seq {
		m.mu.Unlock()
		glog.V(5).Infof("subscription: attach `%s` seq %d refused, seen %d", key, seq, m.seq)
		return false
	}
	m.seq = seq
	old := m.takeLocked()
	gen := m.gen
	m.state = Attached
	m.scopeKey = key
	m.mu.Unlock()

	unsubscribe(old...)

	msgFilter := feed.Filter{Table: feed.TableMessages, Kinds: []chatstore.ChatKind{scope.Kind}}
	msgSub, err := m.sub.Subscribe(ctx, msgFilter, func(e *feed.Event) {
		m.handleMessage(gen, key, e.Record)
	})
	if err != nil {
		subscribeErrors.Inc()
		glog.Errorf("subscription: subscribe messages of `%s` error: %v", key, err)
	}

	notifySub, err := m.sub.Subscribe(ctx, feed.Filter{Table: feed.TableMessages}, func(e *feed.Event) {
		m.handleEvent(gen, e.Record)
	})
	if err != nil {
		subscribeErrors.Inc()
		glog.Errorf("subscription: subscribe notifications error: %v", err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		glog.V(5).Infof("subscription: attach `%s` superseded", key)
		unsubscribe(msgSub, notifySub)
		return false
	}
	m.msgSub, m.notifySub = msgSub, notifySub
	m.mu.Unlock()
	glog.V(5).Infof("subscription: attached `%s`", key)
	return true
}

func (m *SubscriptionManager) Detach() {
	m.mu.Lock()
	old := m.takeLocked()
	m.state = Detached
	m.scopeKey = ""
	m.mu.Unlock()

	unsubscribe(old...)
}

func (m *SubscriptionManager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

func (m *SubscriptionManager) handleMessage(gen uint64, key string, rec *chatstore.MessageRecord) {
	if !m.current(gen) {
		liveEvents.WithLabelValues("stale").Inc()
		return
	}
	if rec.Scope().Key() != key {
		liveEvents.WithLabelValues("other_scope").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	full, err := m.messages.GetMessage(ctx, rec.Id)
	if err != nil {
		liveEvents.WithLabelValues("unresolved").Inc()
		glog.Errorf("subscription: resolve message `%s` error: %v", rec.Id, err)
		return
	}

	// re-check, a scope switch may have happened while resolving.
	if !m.current(gen) {
		liveEvents.WithLabelValues("stale").Inc()
		return
	}
	liveEvents.WithLabelValues("applied").Inc()
	m.onMessage(key, full)
}

func (m *SubscriptionManager) handleEvent(gen uint64, rec *chatstore.MessageRecord) {
	if !m.current(gen) || m.onEvent == nil {
		return
	}
	m.onEvent(rec)
}

package chat

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/cache"
	"github.com/mqy/minichat/chatstore"
	"github.com/mqy/minichat/feed"
	store_mock "github.com/mqy/minichat/store/mock"
)

var (
	ctx = context.Background()
	t0  = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
)

type fakeSub struct {
	filter  feed.Filter
	handler feed.Handler
	closed  int32
}

// fakeFeed delivers pushed records synchronously to open subscriptions.
type fakeFeed struct {
	sync.Mutex
	subs []*fakeSub
	err  error

	// block, when set, holds the next Subscribe call until it is closed.
	block chan struct{}
}

func (f *fakeFeed) Subscribe(_ context.Context, filter feed.Filter, h feed.Handler) (feed.Subscription, error) {
	f.Lock()
	block := f.block
	f.block = nil
	err := f.err
	f.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}

	s := &fakeSub{filter: filter, handler: h}
	f.Lock()
	f.subs = append(f.subs, s)
	f.Unlock()
	return s, nil
}

func (s *fakeSub) Unsubscribe() error {
	atomic.StoreInt32(&s.closed, 1)
	return nil
}

func (s *fakeSub) isClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

func (f *fakeFeed) open() []*fakeSub {
	f.Lock()
	defer f.Unlock()
	var out []*fakeSub
	for _, s := range f.subs {
		if !s.isClosed() {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeFeed) push(rec *chatstore.MessageRecord) {
	e := feed.NewInsertEvent(rec)
	for _, s := range f.open() {
		if s.filter.Match(e) {
			s.handler(e)
		}
	}
}

type fixture struct {
	ctrl     *gomock.Controller
	messages *store_mock.MockIMessageStore
	groups   *store_mock.MockIGroupStore
	users    *store_mock.MockIUserDirectory
	blobs    *store_mock.MockIBlobStore
	feed     *fakeFeed
	cache    cache.IMessageCache
	auth     *auth.StaticClient
	session  *Session

	notified []*chatstore.Notification
}

func newFixture(t *testing.T) *fixture {
	return newFixtureAs(t, "u1", "Alice")
}

// newFixtureAs creates a session signed in as uid.
func newFixtureAs(t *testing.T, uid, name string) *fixture {
	ctrl := gomock.NewController(t)
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)

	f := &fixture{
		ctrl:     ctrl,
		messages: store_mock.NewMockIMessageStore(ctrl),
		groups:   store_mock.NewMockIGroupStore(ctrl),
		users:    store_mock.NewMockIUserDirectory(ctrl),
		blobs:    store_mock.NewMockIBlobStore(ctrl),
		feed:     &fakeFeed{},
		cache:    c,
		auth:     auth.NewStaticClient(uid, name),
	}
	f.session = NewSession(Config{
		Messages: f.messages,
		Groups:   f.groups,
		Users:    f.users,
		Blobs:    f.blobs,
		Feed:     f.feed,
		Cache:    f.cache,
		Auth:     f.auth,
		Now:      func() time.Time { return t0 },
		OnNotification: func(n *chatstore.Notification) {
			f.notified = append(f.notified, n)
		},
	})
	t.Cleanup(func() {
		f.session.Close()
		_ = c.Close()
		ctrl.Finish()
	})
	return f
}

func record(id string, scope chatstore.Scope, author string, at time.Time) *chatstore.MessageRecord {
	chatId := scope.Id
	if scope.Kind == chatstore.ChatKind_Global {
		chatId = ""
	}
	return &chatstore.MessageRecord{
		Id:        id,
		ScopeKind: scope.Kind,
		ScopeId:   chatId,
		AuthorId:  author,
		Text:      "text " + id,
		CreatedAt: at,
	}
}

func ids(msgs []chatstore.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Id)
	}
	return out
}

// selectGlobal selects global on an empty backend.
func (f *fixture) selectGlobal(t *testing.T, recs ...*chatstore.MessageRecord) {
	f.messages.EXPECT().FetchMessages(gomock.Any(), chatstore.GlobalScope()).Return(recs, nil)
	require.NoError(t, f.session.SelectGlobal(ctx))
}

func (f *fixture) withGroups(t *testing.T, groups ...*chatstore.Group) {
	f.groups.EXPECT().ListGroupsForUser(gomock.Any(), "u1").Return(groups, nil)
	require.NoError(t, f.session.RefreshGroups(ctx))
}

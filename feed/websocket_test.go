package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/chatstore"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newFeedServer serves one subscriber: it checks the subscribe frame, writes frames, then
// reads until the client goes away.
func newFeedServer(t *testing.T, frames [][]byte, subscribed chan<- subscribeFrame, closed chan<- struct{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, err := auth.UserIdFromRequest(r); err != nil || uid != "u1" {
			t.Errorf("handshake user: `%s`, err: %v", uid, err)
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var frame subscribeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Errorf("read subscribe frame: %v", err)
			return
		}
		subscribed <- frame

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}))
}

func wsUrl(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWsSubscriber(t *testing.T) {
	frames := [][]byte{
		[]byte(`garbage`),
		encodeEvent(t, NewInsertEvent(testRecord("a", chatstore.GlobalScope()))),
		encodeEvent(t, NewInsertEvent(testRecord("b", chatstore.PersonalScope("u1", "u2")))),
		encodeEvent(t, NewInsertEvent(testRecord("c", chatstore.PersonalScope("u1", "u3")))),
	}
	subscribed := make(chan subscribeFrame, 1)
	closed := make(chan struct{})
	srv := newFeedServer(t, frames, subscribed, closed)
	defer srv.Close()

	s := NewWsSubscriber(wsUrl(srv), auth.NewStaticClient("u1", "Alice").Header())
	got := make(chan string, 10)
	f := Filter{Table: TableMessages, Kinds: []chatstore.ChatKind{chatstore.ChatKind_Personal}}
	sub, err := s.Subscribe(context.Background(), f, func(e *Event) { got <- e.Record.Id })
	require.NoError(t, err)

	select {
	case frame := <-subscribed:
		assert.Equal(t, "subscribe", frame.Op)
		assert.Equal(t, f, frame.Filter)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for subscribe frame")
	}

	for _, want := range []string{"b", "c"} {
		select {
		case id := <-got:
			assert.Equal(t, want, id)
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}

	require.NoError(t, sub.Unsubscribe())
	assert.NoError(t, sub.Unsubscribe())

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("server did not see the close")
	}
}

func TestWsSubscriberPing(t *testing.T) {
	pinged := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPingHandler(func(data string) error {
			select {
			case pinged <- struct{}{}:
			default:
			}
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewWsSubscriber(wsUrl(srv), nil)
	s.pingPeriod = 50 * time.Millisecond
	sub, err := s.Subscribe(context.Background(), Filter{Table: TableMessages}, func(*Event) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	select {
	case <-pinged:
	case <-time.After(3 * time.Second):
		t.Fatal("no ping")
	}
}

func TestWsSubscriberDialError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewWsSubscriber(wsUrl(srv), nil).Subscribe(context.Background(), Filter{}, func(*Event) {})
	assert.Error(t, err)
}

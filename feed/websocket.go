package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 25 * time.Second

	// websocket max message size to read.
	readLimit = 64 * 1024

	transportWs = "ws"
)

// subscribeFrame is the first and only frame a client sends.
type subscribeFrame struct {
	Op     string `json:"op"`
	Filter Filter `json:"filter"`
}

// WsSubscriber implements interface `ISubscriber` on a realtime websocket endpoint.
// Every subscription holds its own connection.
type WsSubscriber struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	pingPeriod time.Duration
	pongWait   time.Duration
}

func NewWsSubscriber(url string, header http.Header) *WsSubscriber {
	return &WsSubscriber{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
}

func (s *WsSubscriber) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		glog.Errorf("feed: dial `%s` error: %v", s.url, err)
		return nil, err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(&subscribeFrame{Op: "subscribe", Filter: f}); err != nil {
		conn.Close()
		return nil, err
	}

	stopChan := make(chan struct{})
	feedSubscriptions.WithLabelValues(transportWs).Inc()
	go s.pingLoop(conn, stopChan)
	go func() {
		s.recvLoop(conn, f, h)
		feedSubscriptions.WithLabelValues(transportWs).Dec()
	}()

	glog.V(5).Infof("feed: ws subscribed, filter: %+v", f)
	return newSubscription(func() error {
		close(stopChan)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		return conn.Close()
	}), nil
}

func (s *WsSubscriber) recvLoop(conn *websocket.Conn, f Filter, h Handler) {
	defer glog.V(5).Info("feed: ws recv loop exited")

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongWait))
		return nil
	})

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				glog.V(5).Infof("feed: ws read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			glog.Errorf("feed: ws unexpected message type: %d", msgType)
			feedEvents.WithLabelValues(transportWs, "invalid").Inc()
			continue
		}

		var e Event
		if err := json.Unmarshal(msg, &e); err != nil {
			glog.Errorf("feed: ws failed to unmarshal `%s`, error: %v", msg, err)
			feedEvents.WithLabelValues(transportWs, "invalid").Inc()
			continue
		}
		if !f.Match(&e) {
			feedEvents.WithLabelValues(transportWs, "filtered").Inc()
			continue
		}
		feedEvents.WithLabelValues(transportWs, "delivered").Inc()
		h(&e)
	}
}

func (s *WsSubscriber) pingLoop(conn *websocket.Conn, stopChan <-chan struct{}) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				glog.V(5).Infof("feed: ws ping error: %v", err)
				return
			}
		}
	}
}

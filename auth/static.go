package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/mqy/minichat/chatstore"
)

// uidCookie carries the user id to the realtime endpoint.
const uidCookie = "x-uid"

// StaticClient serves a user fixed at start up, until SignOut.
type StaticClient struct {
	sync.RWMutex
	user *chatstore.User
}

func NewStaticClient(uid, name string) *StaticClient {
	c := &StaticClient{}
	if uid != "" {
		c.user = &chatstore.User{Id: uid, Name: name}
	}
	return c
}

func (c *StaticClient) CurrentUser(ctx context.Context) (*chatstore.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.RLock()
	defer c.RUnlock()
	if c.user == nil {
		return nil, ErrNotAuthenticated
	}
	u := *c.user
	return &u, nil
}

func (c *StaticClient) SignOut() {
	c.Lock()
	c.user = nil
	c.Unlock()
}

// Header returns the handshake header identifying the user, nil if signed out.
func (c *StaticClient) Header() http.Header {
	c.RLock()
	defer c.RUnlock()
	if c.user == nil {
		return nil
	}
	h := http.Header{}
	h.Add("Cookie", (&http.Cookie{Name: uidCookie, Value: c.user.Id}).String())
	return h
}

// UserIdFromRequest reads the user id set by Header.
func UserIdFromRequest(r *http.Request) (string, error) {
	ck, err := r.Cookie(uidCookie)
	if err != nil || ck.Value == "" {
		return "", ErrNotAuthenticated
	}
	return ck.Value, nil
}

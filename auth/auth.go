package auth

import (
	"context"
	"errors"

	"github.com/mqy/minichat/chatstore"
)

var ErrNotAuthenticated = errors.New("not authenticated")

type Client interface {
	// CurrentUser returns the signed in user, or ErrNotAuthenticated.
	CurrentUser(ctx context.Context) (*chatstore.User, error)
}

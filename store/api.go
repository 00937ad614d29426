package store

import (
	"context"
	"errors"

	"github.com/mqy/minichat/chatstore"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// InsertReq holds the columns of a new message row. Id and CreatedAt are assigned by the store.
type InsertReq struct {
	Scope    chatstore.Scope
	AuthorId string
	Text     string
	FileUrl  string
	FileName string
	FileType string
}

type IMessageStore interface {
	// FetchMessages gets messages of the scope, order by create time ASC.
	FetchMessages(ctx context.Context, scope chatstore.Scope) ([]*chatstore.MessageRecord, error)

	// GetMessage gets one message with the author display name joined.
	GetMessage(ctx context.Context, id string) (*chatstore.MessageRecord, error)

	// InsertMessage creates a message and returns the created record.
	InsertMessage(ctx context.Context, req *InsertReq) (*chatstore.MessageRecord, error)

	// DeleteMessage deletes a message owned by senderId.
	// Returns ErrPermissionDenied if the message exists but is not owned by senderId.
	DeleteMessage(ctx context.Context, id, senderId string) error
}

type IGroupStore interface {
	CreateGroup(ctx context.Context, name, creatorId string) (*chatstore.Group, error)

	AddMembers(ctx context.Context, groupId string, userIds []string) error

	// DeleteGroup deletes the group with its messages and memberships.
	// Only the creator may delete a group.
	DeleteGroup(ctx context.Context, groupId, requesterId string) error

	RemoveMember(ctx context.Context, groupId, userId string) error

	// ListGroupsForUser lists groups userId is member of, with members, order by create time ASC.
	ListGroupsForUser(ctx context.Context, userId string) ([]*chatstore.Group, error)
}

type IUserDirectory interface {
	// ResolveDisplayName returns ErrNotFound for unknown users.
	ResolveDisplayName(ctx context.Context, userId string) (string, error)
}

// IBlobStore keeps attachment bytes behind durable urls.
type IBlobStore interface {
	UploadBlob(ctx context.Context, data []byte, name, mimeType string) (string, error)
	ReadBlob(ctx context.Context, url string) ([]byte, *BlobInfo, error)
	DeleteBlob(ctx context.Context, url string) error
}

type BlobInfo struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int    `json:"size"`
	Created  int64  `json:"created"`
}

package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/mqy/minichat/chatstore"
	"github.com/mqy/minichat/store"
)

const (
	MaxNotifications = 30

	unknownSenderName = "Unknown user"
)

// Viewer describes the local user and what they look at.
type Viewer interface {
	UserId() string
	Viewing() chatstore.Scope
	IsGroupMember(groupId string) bool
}

// NotificationAggregator turns inserts outside the viewed scope into a bounded, newest first
// list. The list is local to the session.
type NotificationAggregator struct {
	users  store.IUserDirectory
	viewer Viewer
	now    func() time.Time

	sync.Mutex
	list []*chatstore.Notification
}

func NewNotificationAggregator(users store.IUserDirectory, viewer Viewer, now func() time.Time) *NotificationAggregator {
	if now == nil {
		now = time.Now
	}
	return &NotificationAggregator{users: users, viewer: viewer, now: now}
}

func (a *NotificationAggregator) relevant(rec *chatstore.MessageRecord, uid string) bool {
	switch rec.ScopeKind {
	case chatstore.ChatKind_Global:
		return true
	case chatstore.ChatKind_Personal:
		return chatstore.HasParticipant(rec.ScopeId, uid)
	case chatstore.ChatKind_Group:
		return a.viewer.IsGroupMember(rec.ScopeId)
	}
	return false
}

// OnIncomingEvent records a notification for rec when it concerns the local user, is not
// their own, and is outside the viewed scope.
func (a *NotificationAggregator) OnIncomingEvent(ctx context.Context, rec *chatstore.MessageRecord) (*chatstore.Notification, bool) {
	uid := a.viewer.UserId()
	if !rec.Valid() || uid == "" || rec.AuthorId == uid {
		notifications.WithLabelValues("ignored").Inc()
		return nil, false
	}
	if !a.relevant(rec, uid) {
		notifications.WithLabelValues("irrelevant").Inc()
		return nil, false
	}
	if a.viewer.Viewing().Equal(rec.Scope()) {
		notifications.WithLabelValues("suppressed").Inc()
		return nil, false
	}

	n := &chatstore.Notification{
		Id:         strings.ReplaceAll(uuid.New(), "-", ""),
		ScopeKind:  rec.ScopeKind,
		ScopeId:    rec.ScopeId,
		SenderId:   rec.AuthorId,
		SenderName: a.senderName(ctx, rec),
		Text:       notificationText(rec),
		CreatedAt:  a.now(),
	}

	a.Lock()
	a.list = append([]*chatstore.Notification{n}, a.list...)
	if len(a.list) > MaxNotifications {
		a.list = a.list[:MaxNotifications]
	}
	a.Unlock()

	notifications.WithLabelValues("emitted").Inc()
	return n, true
}

func (a *NotificationAggregator) senderName(ctx context.Context, rec *chatstore.MessageRecord) string {
	if rec.AuthorName != "" {
		return rec.AuthorName
	}
	if a.users == nil {
		return unknownSenderName
	}
	name, err := a.users.ResolveDisplayName(ctx, rec.AuthorId)
	if err != nil || name == "" {
		if err != nil && err != store.ErrNotFound {
			glog.Errorf("notify: resolve sender `%s` error: %v", rec.AuthorId, err)
		}
		return unknownSenderName
	}
	return name
}

func notificationText(rec *chatstore.MessageRecord) string {
	if rec.Text != "" {
		return rec.Text
	}
	return "sent a file: " + rec.FileName
}

// List returns the notifications, newest first.
func (a *NotificationAggregator) List() []*chatstore.Notification {
	a.Lock()
	defer a.Unlock()
	out := make([]*chatstore.Notification, len(a.list))
	copy(out, a.list)
	return out
}

func (a *NotificationAggregator) Dismiss(id string) bool {
	a.Lock()
	defer a.Unlock()
	for i, n := range a.list {
		if n.Id == id {
			a.list = append(a.list[:i], a.list[i+1:]...)
			return true
		}
	}
	return false
}

func (a *NotificationAggregator) ClearAll() {
	a.Lock()
	a.list = nil
	a.Unlock()
}

package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/cache"
	"github.com/mqy/minichat/chatstore"
	"github.com/mqy/minichat/feed"
	"github.com/mqy/minichat/store"
)

// DefaultMaxFileBytes is the largest attachment SendFile accepts.
const DefaultMaxFileBytes = 25 * 1024 * 1024

type Config struct {
	Messages store.IMessageStore
	Groups   store.IGroupStore
	Users    store.IUserDirectory
	Blobs    store.IBlobStore
	Feed     feed.ISubscriber
	Cache    cache.IMessageCache
	Auth     auth.Client

	// Now defaults to time.Now.
	Now func() time.Time
	// MaxFileBytes defaults to DefaultMaxFileBytes.
	MaxFileBytes int

	// OnMessages is called with the messages of the active scope after every change.
	OnMessages func(scope chatstore.Scope, msgs []chatstore.Message)
	// OnNotification is called for every new notification.
	OnNotification func(n *chatstore.Notification)
}

// FileUpload is an attachment to send.
type FileUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// Session is the chat state of one signed in user: the active scope with its messages,
// the group list and notifications. Methods are safe for concurrent use, feed callbacks run
// on subscriber goroutines.
type Session struct {
	cfg      Config
	store    *MessageStore
	subs     *SubscriptionManager
	notifier *NotificationAggregator

	// mu guards active, selectSeq, userId and groups. Lock order: cacheMu, mu, then store.
	mu     sync.Mutex
	active chatstore.Scope
	// selectSeq is bumped with every change of active, it orders subscription attaches.
	selectSeq uint64
	userId    string
	groups    []*chatstore.Group

	// cacheMu serialises snapshot writes so the last write has the latest snapshot.
	cacheMu sync.Mutex
}

func NewSession(cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	s := &Session{
		cfg:    cfg,
		store:  NewMessageStore(),
		active: chatstore.GlobalScope(),
	}
	s.subs = NewSubscriptionManager(cfg.Feed, cfg.Messages, s.onLiveMessage, s.onLiveEvent)
	s.notifier = NewNotificationAggregator(cfg.Users, s, cfg.Now)
	return s
}

// Start loads the group list and selects the global scope.
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.currentUser(ctx, "start"); err != nil {
		return err
	}
	if err := s.RefreshGroups(ctx); err != nil {
		glog.Errorf("session: load groups error: %v", err)
	}
	return s.SelectGlobal(ctx)
}

func (s *Session) Close() {
	s.subs.Detach()
}

func (s *Session) currentUser(ctx context.Context, op string) (*chatstore.User, error) {
	u, err := s.cfg.Auth.CurrentUser(ctx)
	if err != nil {
		return nil, &Error{Code: CodeUnauthenticated, Op: op, Err: err}
	}
	s.mu.Lock()
	s.userId = u.Id
	s.mu.Unlock()
	return u, nil
}

// UserId returns the last seen user id.
func (s *Session) UserId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userId
}

// Viewing returns the active scope.
func (s *Session) Viewing() chatstore.Scope {
	return s.ActiveScope()
}

func (s *Session) ActiveScope() chatstore.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) IsGroupMember(groupId string) bool {
	g := s.findGroup(groupId)
	return g != nil && (len(g.Members) == 0 || g.HasMember(s.UserId()))
}

// Messages returns the messages of the active scope.
func (s *Session) Messages() []chatstore.Message {
	return s.store.Snapshot()
}

func (s *Session) Groups() []*chatstore.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*chatstore.Group, len(s.groups))
	copy(out, s.groups)
	return out
}

func (s *Session) findGroup(groupId string) *chatstore.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Id == groupId {
			return g
		}
	}
	return nil
}

func (s *Session) Notifications() []*chatstore.Notification {
	return s.notifier.List()
}

func (s *Session) DismissNotification(id string) bool {
	return s.notifier.Dismiss(id)
}

func (s *Session) ClearNotifications() {
	s.notifier.ClearAll()
}

// emit reports the active scope to OnMessages.
func (s *Session) emit() {
	if s.cfg.OnMessages == nil {
		return
	}
	s.mu.Lock()
	scope := s.active
	msgs := s.store.Snapshot()
	s.mu.Unlock()
	s.cfg.OnMessages(scope, msgs)
}

// persistActive writes the active store to the cache entry of key, if key is still active.
func (s *Session) persistActive(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.mu.Lock()
	if s.active.Key() != key {
		s.mu.Unlock()
		return
	}
	snap := s.store.Snapshot()
	s.mu.Unlock()

	s.cfg.Cache.Save(key, snap)
}

// applyToScope runs fn on the live store when scope is active, otherwise on the cached entry
// of scope if there is one. fn reports whether it changed anything. The active check and the
// cache update both run under cacheMu, a concurrent select of scope reads the cache after it.
func (s *Session) applyToScope(scope chatstore.Scope, fn func(ms *MessageStore) bool) {
	key := scope.Key()

	s.cacheMu.Lock()
	s.mu.Lock()
	if s.active.Key() == key {
		changed := fn(s.store)
		var snap []chatstore.Message
		if changed {
			snap = s.store.Snapshot()
		}
		s.mu.Unlock()
		if changed {
			s.cfg.Cache.Save(key, snap)
		}
		s.cacheMu.Unlock()
		if changed {
			s.emit()
		}
		return
	}
	s.mu.Unlock()

	defer s.cacheMu.Unlock()
	msgs, ok := s.cfg.Cache.Load(key)
	if !ok {
		// no entry, the next select fetches from the backend.
		return
	}
	ms := NewMessageStore()
	ms.ReplaceAll(msgs)
	if fn(ms) {
		s.cfg.Cache.Save(key, ms.Snapshot())
	}
}

func (s *Session) SelectGlobal(ctx context.Context) error {
	err := s.selectScope(ctx, chatstore.GlobalScope())
	observe("select_global", err)
	return err
}

func (s *Session) SelectPersonal(ctx context.Context, recipientId string) error {
	const op = "select_personal"
	err := func() error {
		recipientId = strings.TrimSpace(recipientId)
		if recipientId == "" {
			return newInvalidArgumentError(op, "recipient: should not be empty")
		}
		u, err := s.currentUser(ctx, op)
		if err != nil {
			return err
		}
		if recipientId == u.Id {
			return newInvalidArgumentError(op, "recipient: should not be yourself")
		}
		return s.selectScope(ctx, chatstore.PersonalScope(u.Id, recipientId))
	}()
	observe(op, err)
	return err
}

// SelectGroup selects a group of the group list, refreshing the list once if groupId is
// unknown.
func (s *Session) SelectGroup(ctx context.Context, groupId string) error {
	const op = "select_group"
	err := func() error {
		if groupId == "" {
			return newInvalidArgumentError(op, "group: should not be empty")
		}
		if s.findGroup(groupId) == nil {
			if err := s.RefreshGroups(ctx); err != nil {
				return err
			}
			if s.findGroup(groupId) == nil {
				return newError(CodeNotFound, op, "group: not a member of `"+groupId+"`")
			}
		}
		return s.selectScope(ctx, chatstore.GroupScope(groupId))
	}()
	observe(op, err)
	return err
}

func (s *Session) selectScope(ctx context.Context, scope chatstore.Scope) error {
	s.mu.Lock()
	s.active = scope
	s.selectSeq++
	seq := s.selectSeq
	s.store.ReplaceAll(nil)
	s.mu.Unlock()
	s.emit()

	s.subs.Attach(ctx, scope, seq)
	return s.load(ctx, scope)
}

// load fills the store of scope from the cache, or from the backend on a miss. Results
// arriving after the active scope changed are dropped.
func (s *Session) load(ctx context.Context, scope chatstore.Scope) error {
	key := scope.Key()

	s.cacheMu.Lock()
	msgs, ok := s.cfg.Cache.Load(key)
	s.cacheMu.Unlock()
	if ok {
		if s.mergeIfActive(key, msgs) {
			s.emit()
		}
		return nil
	}

	recs, err := s.cfg.Messages.FetchMessages(ctx, scope)
	if err != nil {
		if s.ActiveScope().Key() != key {
			return nil
		}
		return backendError("load", err)
	}

	msgs = make([]chatstore.Message, 0, len(recs))
	for _, r := range recs {
		msgs = append(msgs, r.ToMessage(""))
	}
	if !s.mergeIfActive(key, msgs) {
		glog.V(5).Infof("session: discard load of `%s`, scope changed", key)
		return nil
	}
	s.persistActive(key)
	s.emit()
	return nil
}

// mergeIfActive merges msgs into the store if key is active. Live pushes received during the
// load are kept.
func (s *Session) mergeIfActive(key string, msgs []chatstore.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active.Key() != key {
		return false
	}
	s.store.Merge(msgs)
	return true
}

func (s *Session) onLiveMessage(key string, rec *chatstore.MessageRecord) {
	s.mu.Lock()
	if s.active.Key() != key {
		s.mu.Unlock()
		return
	}
	added := s.store.Append(rec.ToMessage(""))
	s.mu.Unlock()

	if added {
		s.persistActive(key)
		s.emit()
	}
}

func (s *Session) onLiveEvent(rec *chatstore.MessageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	n, ok := s.notifier.OnIncomingEvent(ctx, rec)
	if ok && s.cfg.OnNotification != nil {
		s.cfg.OnNotification(n)
	}
}

// SendMessage sends text to the active scope. The sent message is shown before the feed
// echoes it back.
func (s *Session) SendMessage(ctx context.Context, text string) (*chatstore.Message, error) {
	const op = "send_message"
	msg, err := func() (*chatstore.Message, error) {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, newInvalidArgumentError(op, "text: should not be empty")
		}
		u, err := s.currentUser(ctx, op)
		if err != nil {
			return nil, err
		}
		scope := s.ActiveScope()
		rec, err := s.cfg.Messages.InsertMessage(ctx, &store.InsertReq{
			Scope:    scope,
			AuthorId: u.Id,
			Text:     text,
		})
		if err != nil {
			return nil, backendError(op, err)
		}
		return s.deliverOwn(scope, rec, u), nil
	}()
	observe(op, err)
	return msg, err
}

// SendFile uploads f and sends it to the active scope.
func (s *Session) SendFile(ctx context.Context, f *FileUpload) (*chatstore.Message, error) {
	const op = "send_file"
	msg, err := func() (*chatstore.Message, error) {
		if f == nil || strings.TrimSpace(f.Name) == "" {
			return nil, newInvalidArgumentError(op, "file: name should not be empty")
		}
		if len(f.Data) > s.cfg.MaxFileBytes {
			return nil, newInvalidArgumentError(op, fmt.Sprintf("file: %d bytes exceeds max size of %d bytes", len(f.Data), s.cfg.MaxFileBytes))
		}
		u, err := s.currentUser(ctx, op)
		if err != nil {
			return nil, err
		}
		scope := s.ActiveScope()

		url, err := s.cfg.Blobs.UploadBlob(ctx, f.Data, f.Name, f.MimeType)
		if err != nil {
			return nil, backendError(op, err)
		}
		rec, err := s.cfg.Messages.InsertMessage(ctx, &store.InsertReq{
			Scope:    scope,
			AuthorId: u.Id,
			FileUrl:  url,
			FileName: f.Name,
			FileType: f.MimeType,
		})
		if err != nil {
			if derr := s.cfg.Blobs.DeleteBlob(ctx, url); derr != nil {
				glog.Errorf("session: delete orphan blob `%s` error: %v", url, derr)
			}
			return nil, backendError(op, err)
		}
		return s.deliverOwn(scope, rec, u), nil
	}()
	observe(op, err)
	return msg, err
}

// deliverOwn adds a message just sent by u to the scope it was sent to.
func (s *Session) deliverOwn(scope chatstore.Scope, rec *chatstore.MessageRecord, u *chatstore.User) *chatstore.Message {
	msg := rec.ToMessage(u.Name)
	s.applyToScope(scope, func(ms *MessageStore) bool {
		return ms.Append(msg)
	})
	return &msg
}

// DeleteMessage deletes an own message of the active scope, and its attachment.
func (s *Session) DeleteMessage(ctx context.Context, id string) error {
	const op = "delete_message"
	err := func() error {
		u, err := s.currentUser(ctx, op)
		if err != nil {
			return err
		}
		scope := s.ActiveScope()
		msg, ok := s.store.Get(id)
		if !ok {
			return newError(CodeNotFound, op, "message: `"+id+"` not found")
		}
		if msg.SenderId != u.Id {
			return newError(CodePermissionDenied, op, "message: can only delete your own messages")
		}

		if err := s.cfg.Messages.DeleteMessage(ctx, id, u.Id); err != nil {
			return backendError(op, err)
		}
		s.applyToScope(scope, func(ms *MessageStore) bool {
			_, ok := ms.Remove(id)
			return ok
		})

		if msg.File != nil && msg.File.Url != "" {
			if err := s.cfg.Blobs.DeleteBlob(ctx, msg.File.Url); err != nil && err != store.ErrNotFound {
				glog.Errorf("session: delete blob `%s` error: %v", msg.File.Url, err)
			}
		}
		return nil
	}()
	observe(op, err)
	return err
}

// OpenFile reads the attachment of a message of the active scope.
func (s *Session) OpenFile(ctx context.Context, id string) ([]byte, *chatstore.File, error) {
	const op = "open_file"
	var data []byte
	var file *chatstore.File
	err := func() error {
		msg, ok := s.store.Get(id)
		if !ok {
			return newError(CodeNotFound, op, "message: `"+id+"` not found")
		}
		if msg.File == nil || msg.File.Url == "" {
			return newInvalidArgumentError(op, "message: `"+id+"` has no file")
		}
		b, _, err := s.cfg.Blobs.ReadBlob(ctx, msg.File.Url)
		if err != nil {
			return backendError(op, err)
		}
		data, file = b, msg.File
		return nil
	}()
	observe(op, err)
	return data, file, err
}

// RefreshGroups reloads the groups of the current user.
func (s *Session) RefreshGroups(ctx context.Context) error {
	const op = "refresh_groups"
	err := func() error {
		u, err := s.currentUser(ctx, op)
		if err != nil {
			return err
		}
		groups, err := s.cfg.Groups.ListGroupsForUser(ctx, u.Id)
		if err != nil {
			return backendError(op, err)
		}
		s.mu.Lock()
		s.groups = groups
		s.mu.Unlock()
		return nil
	}()
	observe(op, err)
	return err
}

// CreateGroupChat creates a group of the current user and memberIds. The group is deleted
// again if the members cannot be added.
func (s *Session) CreateGroupChat(ctx context.Context, name string, memberIds []string) (*chatstore.Group, error) {
	const op = "create_group"
	g, err := func() (*chatstore.Group, error) {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, newInvalidArgumentError(op, "name: should not be empty")
		}
		u, err := s.currentUser(ctx, op)
		if err != nil {
			return nil, err
		}

		members := []string{u.Id}
		seen := map[string]bool{u.Id: true}
		for _, id := range memberIds {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			members = append(members, id)
		}
		if len(members) < 2 {
			return nil, newInvalidArgumentError(op, "members: should have at least one other member")
		}

		g, err := s.cfg.Groups.CreateGroup(ctx, name, u.Id)
		if err != nil {
			return nil, backendError(op, err)
		}
		if err := s.cfg.Groups.AddMembers(ctx, g.Id, members); err != nil {
			if derr := s.cfg.Groups.DeleteGroup(ctx, g.Id, u.Id); derr != nil {
				glog.Errorf("session: rollback group `%s` error: %v", g.Id, derr)
			}
			return nil, backendError(op, err)
		}
		g.Members = members

		if err := s.RefreshGroups(ctx); err != nil {
			glog.Errorf("session: refresh groups error: %v", err)
			s.mu.Lock()
			s.groups = append(s.groups, g)
			s.mu.Unlock()
		}
		return g, nil
	}()
	observe(op, err)
	return g, err
}

// DeleteGroupChat deletes a group created by the current user.
func (s *Session) DeleteGroupChat(ctx context.Context, groupId string) error {
	const op = "delete_group"
	err := func() error {
		u, err := s.currentUser(ctx, op)
		if err != nil {
			return err
		}
		g := s.findGroup(groupId)
		if g == nil {
			return newError(CodeNotFound, op, "group: `"+groupId+"` not found")
		}
		if g.CreatedBy != u.Id {
			return newError(CodePermissionDenied, op, "group: only the creator can delete it")
		}
		if err := s.cfg.Groups.DeleteGroup(ctx, groupId, u.Id); err != nil {
			return backendError(op, err)
		}
		return s.afterGroupGone(ctx, groupId)
	}()
	observe(op, err)
	return err
}

// LeaveGroupChat removes the current user from a group. The creator cannot leave.
func (s *Session) LeaveGroupChat(ctx context.Context, groupId string) error {
	const op = "leave_group"
	err := func() error {
		u, err := s.currentUser(ctx, op)
		if err != nil {
			return err
		}
		g := s.findGroup(groupId)
		if g == nil {
			return newError(CodeNotFound, op, "group: `"+groupId+"` not found")
		}
		if g.CreatedBy == u.Id {
			return newError(CodePermissionDenied, op, "group: the creator cannot leave, delete it instead")
		}
		if err := s.cfg.Groups.RemoveMember(ctx, groupId, u.Id); err != nil {
			return backendError(op, err)
		}
		return s.afterGroupGone(ctx, groupId)
	}()
	observe(op, err)
	return err
}

// afterGroupGone forgets a deleted or left group, switching to global if it was active.
func (s *Session) afterGroupGone(ctx context.Context, groupId string) error {
	scope := chatstore.GroupScope(groupId)

	s.cacheMu.Lock()
	s.cfg.Cache.Delete(scope.Key())
	s.cacheMu.Unlock()

	if err := s.RefreshGroups(ctx); err != nil {
		glog.Errorf("session: refresh groups error: %v", err)
		s.mu.Lock()
		kept := make([]*chatstore.Group, 0, len(s.groups))
		for _, g := range s.groups {
			if g.Id != groupId {
				kept = append(kept, g)
			}
		}
		s.groups = kept
		s.mu.Unlock()
	}

	if s.ActiveScope().Equal(scope) {
		return s.SelectGlobal(ctx)
	}
	return nil
}

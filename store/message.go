package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/golang/glog"

	"github.com/mqy/minichat/chatstore"
)

const (
	selectMessageSQL = "SELECT m.id, m.chat_type, m.chat_id, m.sender_id, COALESCE(u.display_name, ''), " +
		"m.text, m.file_url, m.file_name, m.file_type, m.created_at " +
		"FROM messages AS m LEFT JOIN users AS u ON u.id = m.sender_id "
	fetchMessagesSQL = selectMessageSQL + "WHERE m.chat_type = ? AND m.chat_id = ? ORDER BY m.created_at ASC"
	getMessageSQL    = selectMessageSQL + "WHERE m.id = ?"

	insertMessageSQL = "INSERT INTO messages (id, chat_type, chat_id, sender_id, text, file_url, file_name, file_type, created_at) " +
		"VALUES (?,?,?,?,?,?,?,?,?)"
	lockMessageSQL   = "SELECT sender_id FROM messages WHERE id = ? FOR UPDATE"
	deleteMessageSQL = "DELETE FROM messages WHERE id = ? AND sender_id = ?"
)

// IInsertPublisher fans created messages out to live subscribers.
type IInsertPublisher interface {
	PublishInsert(ctx context.Context, rec *chatstore.MessageRecord) error
}

// messageStore implements interface `IMessageStore` on MySQL.
type messageStore struct {
	*sql.DB
	pub   IInsertPublisher
	now   func() time.Time
	newId func() string
}

// NewMessageStore creates a message store, pub may be nil.
func NewMessageStore(db *sql.DB, pub IInsertPublisher) *messageStore {
	return &messageStore{
		DB:    db,
		pub:   pub,
		now:   time.Now,
		newId: newId,
	}
}

func scopeChatId(scope chatstore.Scope) string {
	if scope.Kind == chatstore.ChatKind_Global {
		return ""
	}
	return scope.Id
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*chatstore.MessageRecord, error) {
	var r chatstore.MessageRecord
	var kind string
	if err := row.Scan(&r.Id, &kind, &r.ScopeId, &r.AuthorId, &r.AuthorName,
		&r.Text, &r.FileUrl, &r.FileName, &r.FileType, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.ScopeKind = chatstore.ChatKind(kind)
	return &r, nil
}

func (s *messageStore) FetchMessages(ctx context.Context, scope chatstore.Scope) ([]*chatstore.MessageRecord, error) {
	rows, err := s.QueryContext(ctx, fetchMessagesSQL, string(scope.Kind), scopeChatId(scope))
	if err != nil {
		glog.Errorf("fetch messages query err: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []*chatstore.MessageRecord
	for rows.Next() {
		r, err := scanMessage(rows)
		if err != nil {
			glog.Errorf("fetch messages scan err: %v", err)
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *messageStore) GetMessage(ctx context.Context, id string) (*chatstore.MessageRecord, error) {
	r, err := scanMessage(s.QueryRowContext(ctx, getMessageSQL, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		glog.Errorf("get message scan err: %v", err)
		return nil, err
	}
	return r, nil
}

func (s *messageStore) InsertMessage(ctx context.Context, req *InsertReq) (*chatstore.MessageRecord, error) {
	r := &chatstore.MessageRecord{
		Id:        s.newId(),
		ScopeKind: req.Scope.Kind,
		ScopeId:   scopeChatId(req.Scope),
		AuthorId:  req.AuthorId,
		Text:      req.Text,
		FileUrl:   req.FileUrl,
		FileName:  req.FileName,
		FileType:  req.FileType,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	if _, err := s.ExecContext(ctx, insertMessageSQL, r.Id, string(r.ScopeKind), r.ScopeId, r.AuthorId,
		r.Text, r.FileUrl, r.FileName, r.FileType, r.CreatedAt); err != nil {
		glog.Errorf("insert message exec err: %v", err)
		return nil, err
	}

	if s.pub != nil {
		if err := s.pub.PublishInsert(ctx, r); err != nil {
			// The row is committed, subscribers miss this insert until they refetch.
			glog.Errorf("publish insert `%s` error: %v", r.Id, err)
		}
	}
	return r, nil
}

func (s *messageStore) DeleteMessage(ctx context.Context, id, senderId string) error {
	return withTx(ctx, s.DB, func(ctx context.Context, tx *sql.Tx) error {
		var owner string
		if err := tx.QueryRowContext(ctx, lockMessageSQL, id).Scan(&owner); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		if owner != senderId {
			return ErrPermissionDenied
		}
		_, err := tx.ExecContext(ctx, deleteMessageSQL, id, senderId)
		return err
	})
}

package chatstore

import (
	"time"
)

type ChatKind string

const (
	ChatKind_Global   ChatKind = "global"   // singleton, everyone
	ChatKind_Personal ChatKind = "personal" // one-on-one, two-party
	ChatKind_Group    ChatKind = "group"
)

// File describes an attachment. Url is a durable reference to the stored bytes.
type File struct {
	Url      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
}

// Message is the client side view of a chat message.
// SenderName is resolved when the message is built and is not kept in sync with renames.
type Message struct {
	Id         string    `json:"id"`
	Text       string    `json:"text,omitempty"`
	File       *File     `json:"file,omitempty"`
	SenderId   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// MessageRecord is a message row as stored by the backend.
type MessageRecord struct {
	Id         string    `json:"id"`
	ScopeKind  ChatKind  `json:"chat_type"`
	ScopeId    string    `json:"chat_id,omitempty"`
	AuthorId   string    `json:"sender_id"`
	AuthorName string    `json:"sender_name,omitempty"`
	Text       string    `json:"text,omitempty"`
	FileUrl    string    `json:"file_url,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	FileType   string    `json:"file_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *MessageRecord) Scope() Scope {
	return Scope{Kind: r.ScopeKind, Id: r.ScopeId}
}

// Valid reports whether the record carries an id, an author and some content.
func (r *MessageRecord) Valid() bool {
	return r != nil && r.Id != "" && r.AuthorId != "" && (r.Text != "" || r.FileUrl != "")
}

// ToMessage builds a Message, senderName overrides AuthorName when non-empty.
func (r *MessageRecord) ToMessage(senderName string) Message {
	if senderName == "" {
		senderName = r.AuthorName
	}
	m := Message{
		Id:         r.Id,
		Text:       r.Text,
		SenderId:   r.AuthorId,
		SenderName: senderName,
		Timestamp:  r.CreatedAt,
	}
	if r.FileUrl != "" {
		m.File = &File{Url: r.FileUrl, Name: r.FileName, MimeType: r.FileType}
	}
	return m
}

type User struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type Group struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	Members   []string  `json:"members"`
}

func (g *Group) HasMember(uid string) bool {
	for _, m := range g.Members {
		if m == uid {
			return true
		}
	}
	return false
}

// Notification is a session local alert about a message in a scope other than the one being viewed.
type Notification struct {
	Id         string    `json:"id"`
	ScopeKind  ChatKind  `json:"scopeKind"`
	ScopeId    string    `json:"scopeId,omitempty"`
	SenderId   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

package chatstore

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// globalScopeId is the id part of the global scope key.
	globalScopeId = "global"

	personalIdSep = "_"
)

// Scope identifies one chat: the global room, a two-party chat or a group.
type Scope struct {
	Kind ChatKind `json:"kind"`
	Id   string   `json:"id,omitempty"`
}

func GlobalScope() Scope {
	return Scope{Kind: ChatKind_Global}
}

// PersonalScope returns the scope shared by users a and b, whatever the argument order.
func PersonalScope(a, b string) Scope {
	return Scope{Kind: ChatKind_Personal, Id: PersonalChatId(a, b)}
}

func GroupScope(groupId string) Scope {
	return Scope{Kind: ChatKind_Group, Id: groupId}
}

// Key returns the canonical scope key, see ResolveScopeKey.
func (s Scope) Key() string {
	return ResolveScopeKey(s.Kind, s.Id)
}

// Equal compares kind and id. Global scopes are equal regardless of id.
func (s Scope) Equal(o Scope) bool {
	return s.Key() == o.Key()
}

func (s Scope) IsZero() bool {
	return s.Kind == ""
}

func (s Scope) String() string {
	return s.Key()
}

// ResolveScopeKey maps (kind, id) to "{kind}-{id}". The global scope always maps to
// "global-global", other kinds keep an empty id as "{kind}-". It does not sort personal ids,
// callers use PersonalChatId for that.
// Keys are persisted as cache keys, do not change the format.
func ResolveScopeKey(kind ChatKind, id string) string {
	if kind == ChatKind_Global {
		id = globalScopeId
	}
	return string(kind) + "-" + id
}

// PersonalChatId sorts and joins the two participant ids.
func PersonalChatId(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, personalIdSep)
}

// PersonalChatMembers splits a personal chat id into its participant ids.
func PersonalChatMembers(chatId string) []string {
	return strings.Split(chatId, personalIdSep)
}

// HasParticipant reports whether uid is one of the components of a personal chat id.
func HasParticipant(chatId, uid string) bool {
	if uid == "" {
		return false
	}
	for _, v := range PersonalChatMembers(chatId) {
		if v == uid {
			return true
		}
	}
	return false
}

func ParseChatKind(s string) (ChatKind, error) {
	switch k := ChatKind(s); k {
	case ChatKind_Global, ChatKind_Personal, ChatKind_Group:
		return k, nil
	}
	return "", fmt.Errorf("unknown chat kind: `%s`", s)
}

package chat

import (
	"sort"
	"sync"

	"github.com/mqy/minichat/chatstore"
)

// MessageStore keeps the messages of one scope sorted by timestamp ascending, unique by id.
// Equal timestamps keep arrival order.
type MessageStore struct {
	sync.Mutex
	msgs []chatstore.Message
	ids  map[string]struct{}
}

func NewMessageStore() *MessageStore {
	return &MessageStore{ids: make(map[string]struct{})}
}

func sortMessages(msgs []chatstore.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

// Append adds m unless its id is present, returns false for duplicates.
func (s *MessageStore) Append(m chatstore.Message) bool {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.ids[m.Id]; ok {
		return false
	}
	s.ids[m.Id] = struct{}{}
	s.msgs = append(s.msgs, m)
	sortMessages(s.msgs)
	return true
}

// ReplaceAll drops the current contents for msgs. Later duplicates in msgs are ignored.
func (s *MessageStore) ReplaceAll(msgs []chatstore.Message) {
	s.Lock()
	defer s.Unlock()
	s.msgs = make([]chatstore.Message, 0, len(msgs))
	s.ids = make(map[string]struct{}, len(msgs))
	s.addLocked(msgs)
}

// Merge adds every message of msgs whose id is absent, returns the number added.
func (s *MessageStore) Merge(msgs []chatstore.Message) int {
	s.Lock()
	defer s.Unlock()
	return s.addLocked(msgs)
}

func (s *MessageStore) addLocked(msgs []chatstore.Message) int {
	n := 0
	for _, m := range msgs {
		if _, ok := s.ids[m.Id]; ok {
			continue
		}
		s.ids[m.Id] = struct{}{}
		s.msgs = append(s.msgs, m)
		n++
	}
	if n > 0 {
		sortMessages(s.msgs)
	}
	return n
}

func (s *MessageStore) Remove(id string) (chatstore.Message, bool) {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.ids[id]; !ok {
		return chatstore.Message{}, false
	}
	delete(s.ids, id)
	for i, m := range s.msgs {
		if m.Id == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return m, true
		}
	}
	return chatstore.Message{}, false
}

func (s *MessageStore) Get(id string) (chatstore.Message, bool) {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.ids[id]; !ok {
		return chatstore.Message{}, false
	}
	for _, m := range s.msgs {
		if m.Id == id {
			return m, true
		}
	}
	return chatstore.Message{}, false
}

// Snapshot returns a copy of the messages in order.
func (s *MessageStore) Snapshot() []chatstore.Message {
	s.Lock()
	defer s.Unlock()
	out := make([]chatstore.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *MessageStore) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.msgs)
}

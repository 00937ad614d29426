package cache

import (
	"time"

	"github.com/mqy/minichat/chatstore"
)

// EntryTTL is the lifetime of a cache entry, counted from its last write.
const EntryTTL = 365 * 24 * time.Hour

// IMessageCache persists per scope message lists across restarts.
// Implementations never return storage errors: failures are logged and read as a miss.
type IMessageCache interface {
	// Save overwrites the entry of scopeKey, expiring EntryTTL from now.
	Save(scopeKey string, messages []chatstore.Message)

	// Load returns the messages of a valid entry. Expired and corrupted entries are deleted.
	Load(scopeKey string) ([]chatstore.Message, bool)

	// Delete removes the entry of scopeKey if any.
	Delete(scopeKey string)

	// SweepExpired deletes every expired or unreadable entry, returns the number deleted.
	SweepExpired() int

	Close() error
}

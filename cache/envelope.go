package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mqy/minichat/chatstore"
)

// Entry format versions. Version 1 entries were written without a version field and
// without expiry, either as a bare message array or as {"messages": [...]}.
const (
	legacyVersion  = 1
	currentVersion = 2
)

// envelope is the current on-disk format.
type envelope struct {
	Version   int                 `json:"v"`
	Messages  []chatstore.Message `json:"messages"`
	SavedAt   int64               `json:"savedAt"`   // unix millis
	ExpiresAt int64               `json:"expiresAt"` // unix millis
}

type legacyEnvelope struct {
	Messages []chatstore.Message `json:"messages"`
}

type versionHeader struct {
	Version *int `json:"v"`
}

func newEnvelope(messages []chatstore.Message, now time.Time) *envelope {
	if messages == nil {
		messages = []chatstore.Message{}
	}
	return &envelope{
		Version:   currentVersion,
		Messages:  messages,
		SavedAt:   now.UnixMilli(),
		ExpiresAt: now.Add(EntryTTL).UnixMilli(),
	}
}

// expired reports whether the entry is no longer valid at now, i.e. now >= expiresAt.
func (e *envelope) expired(now time.Time) bool {
	return now.UnixMilli() >= e.ExpiresAt
}

func encodeEntry(e *envelope) ([]byte, error) {
	return json.Marshal(e)
}

// decodeEntry decodes data by version. The returned version is legacyVersion for entries
// that must be rewritten; legacy envelopes carry zero timestamps.
func decodeEntry(data []byte) (*envelope, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, fmt.Errorf("empty entry")
	}

	if trimmed[0] == '[' {
		var messages []chatstore.Message
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, 0, fmt.Errorf("decode legacy array: %w", err)
		}
		return &envelope{Version: legacyVersion, Messages: messages}, legacyVersion, nil
	}

	var header versionHeader
	if err := json.Unmarshal(trimmed, &header); err != nil {
		return nil, 0, fmt.Errorf("decode version: %w", err)
	}

	if header.Version == nil {
		var v legacyEnvelope
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, 0, fmt.Errorf("decode legacy object: %w", err)
		}
		return &envelope{Version: legacyVersion, Messages: v.Messages}, legacyVersion, nil
	}

	switch *header.Version {
	case currentVersion:
		var e envelope
		if err := json.Unmarshal(trimmed, &e); err != nil {
			return nil, 0, fmt.Errorf("decode v%d: %w", currentVersion, err)
		}
		if e.ExpiresAt <= 0 {
			return nil, 0, fmt.Errorf("v%d entry without expiresAt", currentVersion)
		}
		return &e, currentVersion, nil
	default:
		return nil, 0, fmt.Errorf("unsupported entry version: %d", *header.Version)
	}
}

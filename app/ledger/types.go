package ledger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
)

// TimestampLayout is the ISO-8601 layout used for ImportedAt.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Entry records one imported feed entry.
type Entry struct {
	Filename   string  `json:"filename"`
	Title      *string `json:"title"`
	EpisodeID  string  `json:"episode_id"`
	ImportedAt string  `json:"imported_at"`

	// raw holds a record that did not decode into the fields above. It is
	// written back unchanged.
	raw json.RawMessage
}

func (e Entry) MarshalJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}

	type plain Entry
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(plain(e)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Store is the persisted set of imported entries keyed by guid key.
type Store interface {
	Contains(key string) (bool, error)
	// Put records the entry and persists it before returning.
	Put(key string, entry Entry) error
	Flush() error
	Close() error
	// Ledger returns every recorded entry.
	Ledger() (Ledger, error)
}

// Open returns the store backing path. SQLite is used for .db, .sqlite and
// .sqlite3 files; every other path holds a JSON document.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteStore(path)
	default:
		return OpenJSONStore(path)
	}
}

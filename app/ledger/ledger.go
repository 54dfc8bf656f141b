package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Ledger maps guid keys to their import records.
type Ledger map[string]Entry

func (l Ledger) Contains(key string) bool {
	_, ok := l[key]
	return ok
}

func (l Ledger) Put(key string, entry Entry) {
	l[key] = entry
}

// Load reads the ledger at path. A missing file or a document that is not a
// JSON object yields an empty ledger. Records that do not decode are kept
// verbatim under their key.
func Load(path string) (Ledger, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var records map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("Ledger is not valid JSON, starting with empty history", "path", path, "error", err)
		return Ledger{}, nil
	}

	l := make(Ledger, len(records))
	for key, record := range records {
		var entry Entry
		if err := json.Unmarshal(record, &entry); err != nil {
			slog.Warn("Unreadable ledger record, keeping it as is", "path", path, "guid", key, "error", err)
			entry = Entry{raw: record}
		}
		l[key] = entry
	}

	return l, nil
}

// Save writes the ledger as indented JSON. The file is replaced atomically
// through a temporary file in the same directory.
func Save(path string, l Ledger) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("failed to set ledger permissions: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	success = true
	return nil
}

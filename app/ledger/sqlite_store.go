package ledger

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps the ledger in an SQLite database. Every Put is its own
// committed insert.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	version, err := migrateSchema(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Ledger database ready", "path", path, "schema", version)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Contains(key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM episodes WHERE guid = ?)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger entry: %w", err)
	}
	return exists, nil
}

// Put inserts the entry. An existing entry with the same key is kept as is.
func (s *SQLiteStore) Put(key string, entry Entry) error {
	var title sql.NullString
	if entry.Title != nil {
		title = sql.NullString{String: *entry.Title, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO episodes (guid, filename, title, episode_id, imported_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (guid) DO NOTHING
	`, key, entry.Filename, title, entry.EpisodeID, entry.ImportedAt)
	if err != nil {
		return fmt.Errorf("failed to store ledger entry: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Flush() error {
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ledger() (Ledger, error) {
	rows, err := s.db.Query(`SELECT guid, filename, title, episode_id, imported_at FROM episodes`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	l := Ledger{}
	for rows.Next() {
		var (
			key   string
			entry Entry
			title sql.NullString
		)
		if err := rows.Scan(&key, &entry.Filename, &title, &entry.EpisodeID, &entry.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		if title.Valid {
			entry.Title = &title.String
		}
		l[key] = entry
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}

	return l, nil
}

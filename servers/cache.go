package servers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // sqlite driver
)

// Cache persists the last accepted server list snapshot so the UI has data
// to show before the first refresh completes, or while offline.
//
// The cache holds exactly one snapshot; saving replaces the previous one.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (and if necessary creates) the snapshot cache at the
// given path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open server cache: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS snapshot (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			updated_at INTEGER NOT NULL,
			payload    BLOB NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize server cache: %w", err)
	}

	return &Cache{db: db}, nil
}

// Save stores the snapshot, replacing any previously cached one.
func (c *Cache) Save(list *ServerList) error {
	if list == nil {
		return errors.New("nil snapshot")
	}

	payload, err := json.Marshal(list.Servers())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT INTO snapshot (id, updated_at, payload) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at, payload = excluded.payload`,
		list.UpdatedAt(), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Load returns the cached snapshot, or nil if nothing was cached yet.
func (c *Cache) Load() (*ServerList, error) {
	var updatedAt int64
	var payload []byte

	err := c.db.QueryRow(`SELECT updated_at, payload FROM snapshot WHERE id = 1`).
		Scan(&updatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var list []LogicalServer
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return NewServerList(list, updatedAt), nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

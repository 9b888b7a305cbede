// Package clientdata provides persistent caching for external API client
// responses. Payloads are stored as msgpack blobs with expiration
// timestamps for cache-first behavior.
package clientdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// AllTables lists all tables in client_data.db for cleanup operations
var AllTables = []string{
	"moex_couponperiods",
}

// validTables is a set for table name validation
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

const schema = `
CREATE TABLE IF NOT EXISTS moex_couponperiods (
	isin       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moex_couponperiods_expires
	ON moex_couponperiods (expires_at);
`

// Repository provides cache operations for client data
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the cache tables when missing
func (r *Repository) EnsureSchema() error {
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply client data schema: %w", err)
	}
	return nil
}

// validateTable guards against SQL injection through table names
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store saves a value with expiration = now + ttl, upserting on the key
func (r *Repository) Store(table, key string, value interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	blob, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (isin, data, expires_at) VALUES (?, ?, ?)", table)
	if _, err := r.db.Exec(query, key, blob, expiresAt); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh unmarshals the cached value into out only if it has not
// expired. Returns (false, nil) on a miss or expired entry; use Get to
// retrieve stale data as a fallback when the API is down.
func (r *Repository) GetIfFresh(table, key string, out interface{}) (bool, error) {
	return r.get(table, key, out, true)
}

// Get unmarshals the cached value into out regardless of expiration.
// Stale data is better than no data when the upstream feed fails.
func (r *Repository) Get(table, key string, out interface{}) (bool, error) {
	return r.get(table, key, out, false)
}

func (r *Repository) get(table, key string, out interface{}, freshOnly bool) (bool, error) {
	if err := validateTable(table); err != nil {
		return false, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE isin = ?", table)
	args := []interface{}{key}
	if freshOnly {
		query += " AND expires_at > ?"
		args = append(args, time.Now().Unix())
	}

	var blob []byte
	err := r.db.QueryRow(query, args...).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	if err := msgpack.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache payload: %w", err)
	}
	return true, nil
}

// DeleteExpired removes all rows past their expiration from one table,
// returning the number of rows deleted
func (r *Repository) DeleteExpired(table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)
	result, err := r.db.Exec(query, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	return result.RowsAffected()
}

// DeleteAllExpired removes expired entries from every cache table
func (r *Repository) DeleteAllExpired() (map[string]int64, error) {
	results := make(map[string]int64)
	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(table)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}
	return results, nil
}

// Package settings persists plugin settings in a SQL key/value table.
// Keys are flat strings such as "default/clock.pos"; values are stored as
// JSON so lists and numbers round-trip.
package settings

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	// SQLite driver
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// Store is a settings table.
type Store struct {
	db     *sql.DB
	driver string
	path   string

	mu    sync.RWMutex
	cache map[string]string
}

// Open connects to the settings database and creates the table if needed.
// For sqlite, dsn is a file path; an empty dsn opens an in-memory database.
func Open(driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = SQLite
	}
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case SQLite:
		db, err = openSQLite(dsn)
	case Postgres, MySQL:
		db, err = sql.Open(driver, dsn)
	default:
		return nil, fmt.Errorf("unsupported settings driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening settings database: %w", err)
	}
	s := &Store{db: db, driver: driver, path: dsn, cache: map[string]string{}}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" || path == ":memory:" {
		db, err := sql.Open("sqlite", ":memory:")
		if err == nil {
			// Each connection to :memory: is a separate database.
			db.SetMaxOpenConns(1)
		}
		return db, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

const schema = `CREATE TABLE IF NOT EXISTS settings (
	name VARCHAR(255) PRIMARY KEY,
	value TEXT NOT NULL
)`

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating settings table: %w", err)
	}
	rows, err := s.db.Query("SELECT name, value FROM settings")
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		s.cache[name] = value
	}
	return rows.Err()
}

// Driver returns the database driver name.
func (s *Store) Driver() string { return s.driver }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the decoded value of key, or def when it is not set or
// cannot be decoded.
func (s *Store) Get(key string, def any) any {
	s.mu.RLock()
	raw, ok := s.cache[key]
	s.mu.RUnlock()
	if !ok {
		return def
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return def
	}
	return normalize(v)
}

// Has reports whether key is set.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[key]
	return ok
}

// Save stores value under key.
func (s *Store) Save(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %s: %w", key, err)
	}
	if _, err := s.db.Exec(s.upsert(), key, string(raw)); err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}
	s.mu.Lock()
	s.cache[key] = string(raw)
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(s.rebind("DELETE FROM settings WHERE name = ?"), key); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// Keys returns the stored keys starting with prefix, sorted.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) upsert() string {
	if s.driver == MySQL {
		return "INSERT INTO settings (name, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)"
	}
	return s.rebind("INSERT INTO settings (name, value) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET value = excluded.value")
}

// rebind rewrites ? placeholders as $1, $2... for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != Postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// normalize turns whole JSON numbers back into ints.
func normalize(v any) any {
	switch val := v.(type) {
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	case []any:
		for i := range val {
			val[i] = normalize(val[i])
		}
	case map[string]any:
		for k := range val {
			val[k] = normalize(val[k])
		}
	}
	return v
}

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// InstalledRecord is a single row of the installed-set database: which
// formula, which version, which store key backs it, whether the user asked
// for it explicitly (versus it being pulled in as a dependency), the runtime
// dependency names resolved at install time (gc's live-set walk uses this
// recorded closure rather than re-querying the catalog), and whether the
// formula is keg-only.
type InstalledRecord struct {
	Name          string
	Version       string
	StoreKey      string
	IsExplicit    bool
	InstalledAt   time.Time
	RequestedDeps []string
	KegOnly       bool
}

// DB is the installed-set database, a single-file embedded sqlite database
// under <root>/db/installed.sqlite3. All mutations additionally take the
// store's process-wide lock file, so two zerobrew processes never race on
// the same root even though sqlite itself serializes writes internally.
type DB struct {
	cfg  *config.Config
	conn *sql.DB
}

// OpenDB opens (creating if necessary) the installed-set database for cfg.
func OpenDB(cfg *config.Config) (*DB, error) {
	if err := os.MkdirAll(cfg.DBDir, 0755); err != nil {
		return nil, &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	conn, err := sql.Open("sqlite", cfg.DBPath())
	if err != nil {
		return nil, &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}
	conn.SetMaxOpenConns(1) // sqlite: one writer at a time, avoid SQLITE_BUSY races in-process

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, &zerobrewerr.ErrStoreCorruption{Detail: fmt.Sprintf("migrating schema: %v", err)}
	}

	return &DB{cfg: cfg, conn: conn}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS installed (
	name           TEXT PRIMARY KEY,
	version        TEXT NOT NULL,
	store_key      TEXT NOT NULL,
	is_explicit    INTEGER NOT NULL DEFAULT 0,
	installed_at   TEXT NOT NULL,
	requested_deps TEXT NOT NULL DEFAULT '[]',
	keg_only       INTEGER NOT NULL DEFAULT 0
);
`

// Close releases the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Insert upserts rec as the installed record for rec.Name, taking the
// store's process-wide lock for the duration of the write.
func (db *DB) Insert(rec InstalledRecord) error {
	lock := NewFileLock(db.cfg.LockPath())
	if err := lock.LockExclusive(); err != nil {
		return err
	}
	defer lock.Unlock()

	deps := rec.RequestedDeps
	if deps == nil {
		deps = []string{}
	}
	depsJSON, err := json.Marshal(deps)
	if err != nil {
		return &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}

	_, err = db.conn.Exec(
		`INSERT INTO installed (name, version, store_key, is_explicit, installed_at, requested_deps, keg_only)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			store_key = excluded.store_key,
			is_explicit = excluded.is_explicit,
			installed_at = excluded.installed_at,
			requested_deps = excluded.requested_deps,
			keg_only = excluded.keg_only`,
		rec.Name, rec.Version, rec.StoreKey, boolToInt(rec.IsExplicit), rec.InstalledAt.UTC().Format(time.RFC3339Nano),
		string(depsJSON), boolToInt(rec.KegOnly),
	)
	if err != nil {
		return &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}
	return nil
}

// Remove deletes the installed record for name. A no-op if name is not
// present.
func (db *DB) Remove(name string) error {
	lock := NewFileLock(db.cfg.LockPath())
	if err := lock.LockExclusive(); err != nil {
		return err
	}
	defer lock.Unlock()

	if _, err := db.conn.Exec(`DELETE FROM installed WHERE name = ?`, name); err != nil {
		return &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}
	return nil
}

// Get returns the installed record for name, reporting false if absent.
func (db *DB) Get(name string) (InstalledRecord, bool, error) {
	row := db.conn.QueryRow(
		`SELECT name, version, store_key, is_explicit, installed_at, requested_deps, keg_only FROM installed WHERE name = ?`, name)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return InstalledRecord{}, false, nil
	}
	if err != nil {
		return InstalledRecord{}, false, &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}
	return rec, true, nil
}

// List returns every installed record, ordered by name.
func (db *DB) List() ([]InstalledRecord, error) {
	rows, err := db.conn.Query(
		`SELECT name, version, store_key, is_explicit, installed_at, requested_deps, keg_only FROM installed ORDER BY name ASC`)
	if err != nil {
		return nil, &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}
	defer rows.Close()

	var out []InstalledRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}
	return out, nil
}

// UpdateExplicit flips the is_explicit flag for an already-installed
// formula, e.g. when a dependency is later installed directly by name.
func (db *DB) UpdateExplicit(name string, explicit bool) error {
	lock := NewFileLock(db.cfg.LockPath())
	if err := lock.LockExclusive(); err != nil {
		return err
	}
	defer lock.Unlock()

	res, err := db.conn.Exec(`UPDATE installed SET is_explicit = ? WHERE name = ?`, boolToInt(explicit), name)
	if err != nil {
		return &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &zerobrewerr.ErrStoreCorruption{Detail: err.Error()}
	}
	if n == 0 {
		return &zerobrewerr.ErrFormulaNotFound{Name: name}
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (InstalledRecord, error) {
	var rec InstalledRecord
	var isExplicit int
	var installedAt string
	var requestedDeps string
	var kegOnly int

	if err := s.Scan(&rec.Name, &rec.Version, &rec.StoreKey, &isExplicit, &installedAt, &requestedDeps, &kegOnly); err != nil {
		return InstalledRecord{}, err
	}

	rec.IsExplicit = isExplicit != 0
	rec.KegOnly = kegOnly != 0
	if t, err := time.Parse(time.RFC3339Nano, installedAt); err == nil {
		rec.InstalledAt = t
	}
	if err := json.Unmarshal([]byte(requestedDeps), &rec.RequestedDeps); err != nil {
		rec.RequestedDeps = nil
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schemaVersion = "1"

// WAL keeps readers (export, top, the janitor) from blocking behind the
// sampling loop's per-tick write transaction; synchronous=NORMAL bounds
// fsync cost to the tick boundary.
const dsnOptions = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL"

const schema = `
CREATE TABLE IF NOT EXISTS process (
	id INTEGER PRIMARY KEY,
	pid INTEGER NOT NULL,
	create_time REAL NOT NULL,
	exe_path TEXT,
	name TEXT,
	cmdline TEXT,
	username TEXT,
	ppid INTEGER,
	first_seen REAL NOT NULL,
	last_seen REAL NOT NULL,
	ended INTEGER NOT NULL DEFAULT 0,
	partial_meta INTEGER NOT NULL DEFAULT 0,
	UNIQUE(pid, create_time)
);
CREATE TABLE IF NOT EXISTS sample (
	id INTEGER PRIMARY KEY,
	ts REAL NOT NULL,
	process_id INTEGER NOT NULL,
	dt_s REAL NOT NULL,
	delta_cpu_s REAL NOT NULL,
	eff_cores REAL NOT NULL,
	active INTEGER NOT NULL,
	rss_bytes INTEGER,
	vms_bytes INTEGER,
	io_read_bytes INTEGER,
	io_write_bytes INTEGER,
	FOREIGN KEY(process_id) REFERENCES process(id)
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_process_exe_path ON process(exe_path);
CREATE INDEX IF NOT EXISTS idx_process_ended ON process(ended);
CREATE INDEX IF NOT EXISTS idx_sample_ts ON sample(ts);
CREATE INDEX IF NOT EXISTS idx_sample_process_ts ON sample(process_id, ts);
`

func OpenDB(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?%s", dbPath, dsnOptions)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.WithMessage(err, "open database")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WithMessage(err, "ping database")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return errors.WithMessage(err, "migrate schema")
	}
	if _, err := db.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, schemaVersion); err != nil {
		return errors.WithMessage(err, "record schema version")
	}
	return nil
}

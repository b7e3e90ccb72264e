package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/daybridge/daybridge/internal/profile"
	"github.com/daybridge/daybridge/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database at the profile DSN with settings that
// suit a single-user instance:
// - WAL journal mode to avoid writer/reader locking issues.
// - busy_timeout so concurrent agent goroutines queue instead of failing.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	dsn := profile.DSN + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}

	return &DB{db: sqlDB, profile: profile}, nil
}

const latestSchema = `
CREATE TABLE IF NOT EXISTS schedule (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	start_ts BIGINT NOT NULL,
	end_ts BIGINT NOT NULL,
	all_day INTEGER NOT NULL DEFAULT 0,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schedule_start_ts ON schedule (start_ts);

CREATE TABLE IF NOT EXISTS conversation_message (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	conversation_uid TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '',
	created_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_message_conversation
	ON conversation_message (conversation_uid, created_ts);

CREATE TABLE IF NOT EXISTS memory_entry (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_uid TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	created_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS knowledge_embedding (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id TEXT NOT NULL,
	version TEXT NOT NULL,
	model TEXT NOT NULL,
	embedding BLOB NOT NULL,
	updated_ts BIGINT NOT NULL,
	UNIQUE (chunk_id, version, model)
);

CREATE TABLE IF NOT EXISTS fetch_state (
	resource_key TEXT PRIMARY KEY,
	last_fetch_ts BIGINT NOT NULL,
	result_count INTEGER NOT NULL DEFAULT 0
);
`

// Migrate applies the latest schema. The schema is idempotent; there is no
// stepwise migration history for the single-user SQLite deployment.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/solmari/civassist/internal/profile"

	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// DB is the sqlite-backed store driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens (and if necessary initializes) the sqlite database at the
// profile's DSN.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	sqlDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := &DB{db: sqlDB, profile: profile}
	if err := driver.migrate(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to migrate db")
	}
	return driver, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

const latestSchema = `
CREATE TABLE IF NOT EXISTS routing_rule (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	department TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT 'medium',
	sla_hours INTEGER NOT NULL DEFAULT 48,
	catch_all INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS faq (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT 'en',
	workflow_action TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS appointment_config (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	available_days TEXT NOT NULL DEFAULT '[]',
	time_ranges TEXT NOT NULL DEFAULT '[]',
	slot_minutes INTEGER NOT NULL DEFAULT 30,
	max_per_slot INTEGER NOT NULL DEFAULT 1,
	lead_time_hours INTEGER NOT NULL DEFAULT 24,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS appointment (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	service_id TEXT NOT NULL,
	service_name TEXT NOT NULL,
	date TEXT NOT NULL,
	slot TEXT NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'confirmed',
	created_ts BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_appointment_slot ON appointment (service_id, date, slot);

CREATE TABLE IF NOT EXISTS service_request (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id TEXT NOT NULL UNIQUE,
	year INTEGER NOT NULL,
	category TEXT NOT NULL,
	department TEXT NOT NULL,
	priority TEXT NOT NULL,
	description TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	contact TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	sla_hours INTEGER NOT NULL,
	created_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	user_id TEXT NOT NULL,
	user_message TEXT NOT NULL,
	assistant_message TEXT NOT NULL,
	language TEXT NOT NULL,
	sentiment TEXT NOT NULL,
	escalated INTEGER NOT NULL DEFAULT 0,
	created_ts BIGINT NOT NULL
);
`

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(latestSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to exec schema statement")
		}
	}
	return nil
}

// placeholders returns n sqlite placeholders.
func placeholders(n int) string {
	list := make([]string, n)
	for i := range list {
		list[i] = "?"
	}
	return strings.Join(list, ", ")
}

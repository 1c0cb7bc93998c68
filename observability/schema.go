package observability

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Schema contains the DDL for the bridge event log.
const Schema = `
CREATE TABLE IF NOT EXISTS bridge_events (
    event_id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '{}',
    success INTEGER NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_bridge_events_type_time
    ON bridge_events(event_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bridge_events_time
    ON bridge_events(created_at DESC);
`

// Open opens (or creates) the event-log database and applies the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("observability: open %s: %w", path, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("observability: init schema: %w", err)
	}
	return db, nil
}

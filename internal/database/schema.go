package database

import (
	"database/sql"
	"fmt"
	"log"
)

// SchemaVersion is bumped whenever the table layout changes. The check runs
// once at startup; per-request code never migrates anything.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS aliases (
	id BIGSERIAL PRIMARY KEY,
	party_id TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	normalized_name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS friend_links (
	id BIGSERIAL PRIMARY KEY,
	party_a TEXT NOT NULL DEFAULT '',
	party_b TEXT NOT NULL,
	name_b_for_a TEXT NOT NULL DEFAULT '',
	name_a_for_b TEXT NOT NULL DEFAULT '',
	share_code TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	ref TEXT NOT NULL,
	creator_id TEXT NOT NULL,
	counterparty_label TEXT NOT NULL,
	counterparty_id TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	amount BIGINT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	confirmation_code TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	decided_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_transactions_creator ON transactions(creator_id);
CREATE INDEX IF NOT EXISTS idx_transactions_counterparty ON transactions(counterparty_id);
CREATE INDEX IF NOT EXISTS idx_transactions_code ON transactions(confirmation_code);
CREATE INDEX IF NOT EXISTS idx_friend_links_share_code ON friend_links(share_code);
CREATE INDEX IF NOT EXISTS idx_friend_links_party_a ON friend_links(party_a);
CREATE INDEX IF NOT EXISTS idx_friend_links_party_b ON friend_links(party_b);
`

// EnsureSchema applies the schema and records the version. A database
// holding a newer version than this binary is refused.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	var version sql.NullInt64
	err := db.QueryRow(`SELECT MAX(version) FROM schema_meta`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	switch {
	case !version.Valid:
		if _, err := db.Exec(`INSERT INTO schema_meta (version) VALUES ($1)`, SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		log.Printf("[SCHEMA] Initialized at version %d", SchemaVersion)
	case version.Int64 > SchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version.Int64, SchemaVersion)
	default:
		log.Printf("[SCHEMA] Version %d OK", version.Int64)
	}
	return nil
}

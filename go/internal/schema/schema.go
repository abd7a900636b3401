// Package schema holds the Postgres layout of the game store.
package schema

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var ddl string

// NotifyChannel is the LISTEN/NOTIFY channel fed by the outbox insert trigger.
const NotifyChannel = "room_outbox_events"

// Tables lists every table in dependency order, children last.
var Tables = []string{
	"rooms", "participants", "questions", "teams", "team_members", "pre_submissions",
	"rounds", "submissions", "round_scores", "aggregate_scores", "devices",
	"team_pairing_codes", "room_outbox",
}

// DDL returns the schema script.
func DDL() string {
	return ddl
}

// Apply creates all tables, indexes and the outbox trigger if missing.
func Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

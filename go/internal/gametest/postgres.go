package gametest

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/mcdev12/rankparty/go/internal/gameconfig"
	"github.com/mcdev12/rankparty/go/internal/outbox"
	"github.com/mcdev12/rankparty/go/internal/pairing"
	"github.com/mcdev12/rankparty/go/internal/presubmissions"
	"github.com/mcdev12/rankparty/go/internal/rooms"
	"github.com/mcdev12/rankparty/go/internal/rounds"
	"github.com/mcdev12/rankparty/go/internal/schema"
	"github.com/mcdev12/rankparty/go/internal/teams"
)

// DSNEnv names the variable holding the database used by Postgres tests.
const DSNEnv = "RANKPARTY_TEST_DSN"

// OpenPostgres connects to the test database, applies the schema and empties
// every table. The test is skipped when DSNEnv is unset.
func OpenPostgres(t testing.TB) *sql.DB {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", DSNEnv)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open()=%v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := schema.Apply(ctx, db); err != nil {
		t.Fatalf("schema.Apply()=%v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE "+strings.Join(schema.Tables, ", ")+" CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

// NewPostgres returns a Game whose apps run on the Postgres repositories.
func NewPostgres(t testing.TB) (*Game, *sql.DB) {
	t.Helper()
	db := OpenPostgres(t)
	cfg, err := gameconfig.Default()
	if err != nil {
		t.Fatalf("gameconfig.Default()=%v", err)
	}
	// start at wall time so app timestamps line up with NOW() defaults
	clock := clockwork.NewFakeClockAt(clockwork.NewRealClock().Now())
	return &Game{
		Outbox:         outbox.NewRepository(db),
		Clock:          clock,
		Config:         cfg,
		Rooms:          rooms.NewApp(rooms.NewRepository(db), cfg, clock),
		Teams:          teams.NewApp(teams.NewRepository(db), clock),
		PreSubmissions: presubmissions.NewApp(presubmissions.NewRepository(db), clock),
		Rounds:         rounds.NewApp(rounds.NewRepository(db), clock),
		Pairing:        pairing.NewApp(pairing.NewRepository(db), clock, cfg.PairingCodeTTL),
	}, db
}

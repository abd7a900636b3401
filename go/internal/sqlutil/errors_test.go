package sqlutil

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mcdev12/rankparty/go/internal/apperr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no rows", sql.ErrNoRows, apperr.KindNotFound},
		{"pq unique", &pq.Error{Code: uniqueViolation, Constraint: "rooms_code_key"}, apperr.KindStateConflict},
		{"pgx unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "rooms_code_key"}), apperr.KindStateConflict},
		{"other", errors.New("connection reset"), apperr.KindStorage},
	}
	for _, c := range cases {
		got := Classify(c.err, "room not found", "failed to insert room")
		if kind := apperr.KindOf(got); kind != c.want {
			t.Fatalf("%s: KindOf(Classify())=%v, want %v", c.name, kind, c.want)
		}
	}
	if Classify(nil, "", "") != nil {
		t.Fatal("Classify(nil) != nil")
	}
}

func TestConstraintName(t *testing.T) {
	if got := ConstraintName(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "devices_team_id_key"}); got != "devices_team_id_key" {
		t.Fatalf("ConstraintName()=%q", got)
	}
	if got := ConstraintName(errors.New("plain")); got != "" {
		t.Fatalf("ConstraintName()=%q, want empty", got)
	}
}

func TestIsRetryable(t *testing.T) {
	retry := []error{
		&pq.Error{Code: deadlockDetected},
		apperr.Storage(&pgconn.PgError{Code: serializationFailure}, "failed to lock room"),
	}
	for _, err := range retry {
		if !IsRetryable(err) {
			t.Fatalf("IsRetryable(%v)=false", err)
		}
	}
	if IsRetryable(&pq.Error{Code: uniqueViolation}) || IsRetryable(sql.ErrNoRows) {
		t.Fatal("IsRetryable() accepted a permanent error")
	}
}

package sqlutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// NullOf maps a nil pointer to an invalid sql.Null.
func NullOf[T any](val *T) sql.Null[T] {
	if val == nil {
		return sql.Null[T]{}
	}
	return sql.Null[T]{V: *val, Valid: true}
}

// PtrOf is the inverse of NullOf.
func PtrOf[T any](val sql.Null[T]) *T {
	if !val.Valid {
		return nil
	}
	v := val.V
	return &v
}

func ToSqlString(val *string) sql.NullString {
	n := NullOf(val)
	return sql.NullString{String: n.V, Valid: n.Valid}
}

func FromSqlStringPtr(val sql.NullString) *string {
	return PtrOf(sql.Null[string]{V: val.String, Valid: val.Valid})
}

func ToSqlTime(val *time.Time) sql.NullTime {
	n := NullOf(val)
	return sql.NullTime{Time: n.V, Valid: n.Valid}
}

func FromSqlTime(val sql.NullTime) *time.Time {
	return PtrOf(sql.Null[time.Time]{V: val.Time, Valid: val.Valid})
}

func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	n := NullOf(id)
	return uuid.NullUUID{UUID: n.V, Valid: n.Valid}
}

func FromNullUUID(val uuid.NullUUID) *uuid.UUID {
	return PtrOf(sql.Null[uuid.UUID]{V: val.UUID, Valid: val.Valid})
}

// ToNullText maps "" to NULL.
func ToNullText(val string) sql.NullString {
	return sql.NullString{String: val, Valid: val != ""}
}

// ToNullRawMessage stores a question's fixed options as JSONB; no options
// is NULL.
func ToNullRawMessage(options []string) (pqtype.NullRawMessage, error) {
	if len(options) == 0 {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("encode options: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func FromNullRawMessage(val pqtype.NullRawMessage) ([]string, error) {
	if !val.Valid || len(val.RawMessage) == 0 {
		return nil, nil
	}
	var options []string
	if err := json.Unmarshal(val.RawMessage, &options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return options, nil
}

// JSONParam binds JSONB as text; lib/pq would otherwise send []byte as bytea.
func JSONParam(val pqtype.NullRawMessage) sql.NullString {
	return sql.NullString{String: string(val.RawMessage), Valid: val.Valid}
}

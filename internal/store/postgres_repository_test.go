package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueConstraint(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantConstraint string
		wantOK         bool
	}{
		{
			name:   "nil error",
			err:    nil,
			wantOK: false,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			wantOK: false,
		},
		{
			name:   "other pg error",
			err:    &pgconn.PgError{Code: "23503", ConstraintName: "payments_user_id_fkey"},
			wantOK: false,
		},
		{
			name:           "unique violation on reference",
			err:            &pgconn.PgError{Code: "23505", ConstraintName: "payments_reference_key"},
			wantConstraint: "payments_reference_key",
			wantOK:         true,
		},
		{
			name:           "wrapped unique violation",
			err:            fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "payments_idempotency_key_key"}),
			wantConstraint: "payments_idempotency_key_key",
			wantOK:         true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			constraint, ok := uniqueConstraint(tc.err)
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if constraint != tc.wantConstraint {
				t.Fatalf("expected constraint %q, got %q", tc.wantConstraint, constraint)
			}
		})
	}
}

func TestUUIDStrings(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got := uuidStrings([]uuid.UUID{a, b})
	if len(got) != 2 || got[0] != a.String() || got[1] != b.String() {
		t.Fatalf("unexpected conversion: %v", got)
	}
	if out := uuidStrings(nil); out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", out)
	}
}

func TestJSONArg(t *testing.T) {
	if jsonArg(nil) != nil {
		t.Fatal("expected nil for empty json")
	}
	if got := jsonArg(json.RawMessage(`{"error":"timeout"}`)); got != `{"error":"timeout"}` {
		t.Fatalf("unexpected json arg: %v", got)
	}
}

func TestOffset(t *testing.T) {
	if got := offset(0, 20); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := offset(3, 20); got != 40 {
		t.Fatalf("expected 40, got %d", got)
	}
}

func TestTokenTable(t *testing.T) {
	if table, err := tokenTable(TokenPasswordReset); err != nil || table != "password_reset_tokens" {
		t.Fatalf("unexpected table %q err %v", table, err)
	}
	if table, err := tokenTable(TokenEmailVerification); err != nil || table != "email_verification_tokens" {
		t.Fatalf("unexpected table %q err %v", table, err)
	}
	if _, err := tokenTable("session"); err == nil {
		t.Fatal("expected error for unknown token kind")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Fatalf("expected matching up/down migrations, got up=%d down=%d", up, down)
	}

	schema, err := fs.ReadFile(migrationsFS, "migrations/000001_init_schema.up.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	for _, constraint := range []string{"payments_reference_key", "payments_idempotency_key_key", "uq_fee_assignments_open"} {
		if !strings.Contains(string(schema), constraint) {
			t.Fatalf("schema is missing %s", constraint)
		}
	}
}

package app

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDeriveIdempotencyKey_IsPermutationInvariant(t *testing.T) {
	user := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	base := DeriveIdempotencyKey(user, []uuid.UUID{a, b, c}, "")
	for _, ids := range [][]uuid.UUID{{c, b, a}, {b, a, c}, {a, c, b}} {
		if got := DeriveIdempotencyKey(user, ids, ""); got != base {
			t.Fatalf("key changed under permutation: %s vs %s", got, base)
		}
	}
	if DeriveIdempotencyKey(uuid.New(), []uuid.UUID{a, b, c}, "") == base {
		t.Fatal("expected a different key for a different user")
	}
	if DeriveIdempotencyKey(user, []uuid.UUID{a, b}, "") == base {
		t.Fatal("expected a different key for a different fee set")
	}
	if len(base) != 64 {
		t.Fatalf("expected a hex sha256 key, got %q", base)
	}
}

func TestDeriveIdempotencyKey_UsesClientKeyVerbatim(t *testing.T) {
	if got := DeriveIdempotencyKey(uuid.New(), []uuid.UUID{uuid.New()}, "  checkout-42 "); got != "checkout-42" {
		t.Fatalf("expected trimmed client key, got %q", got)
	}
}

func TestRetryIdempotencyKey_AppendsSuffix(t *testing.T) {
	first, err := retryIdempotencyKey("base")
	if err != nil {
		t.Fatalf("retry key: %v", err)
	}
	second, _ := retryIdempotencyKey("base")
	if !strings.HasPrefix(first, "base:") || first == second {
		t.Fatalf("expected distinct suffixed keys, got %q and %q", first, second)
	}
}

func TestNewPaymentReference_Format(t *testing.T) {
	ref, err := NewPaymentReference(time.UnixMilli(1718000000000))
	if err != nil {
		t.Fatalf("reference: %v", err)
	}
	if !regexp.MustCompile(`^PAX-1718000000000-[0-9a-f]{8}$`).MatchString(ref) {
		t.Fatalf("unexpected reference %q", ref)
	}
}

func TestUniqueFeeIDs_KeepsFirstSeenOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got := uniqueFeeIDs([]uuid.UUID{b, a, b, uuid.Nil, a})
	if len(got) != 3 || got[0] != b || got[1] != a || got[2] != uuid.Nil {
		t.Fatalf("unexpected result %v", got)
	}
}

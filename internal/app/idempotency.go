package app

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	referencePrefix         = "PAX"
	maxClientIdempotencyLen = 200
)

// DeriveIdempotencyKey returns clientKey verbatim when given. Otherwise it
// hashes the user id with the sorted fee ids, so the key does not depend on
// the order fees were selected in.
func DeriveIdempotencyKey(userID uuid.UUID, feeIDs []uuid.UUID, clientKey string) string {
	if key := strings.TrimSpace(clientKey); key != "" {
		return key
	}

	ids := make([]string, 0, len(feeIDs))
	for _, id := range feeIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	sum := sha256.Sum256([]byte(userID.String() + ":" + strings.Join(ids, ",")))
	return hex.EncodeToString(sum[:])
}

// retryIdempotencyKey disambiguates base after a failed attempt.
func retryIdempotencyKey(base string) (string, error) {
	suffix, err := randomHex(8)
	if err != nil {
		return "", err
	}
	return base + ":" + suffix, nil
}

// NewPaymentReference returns a gateway reference like PAX-1718000000000-9f86d081.
func NewPaymentReference(now time.Time) (string, error) {
	suffix, err := randomHex(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", referencePrefix, now.UnixMilli(), suffix), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// uniqueFeeIDs drops repeated ids, keeping first-seen order.
func uniqueFeeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

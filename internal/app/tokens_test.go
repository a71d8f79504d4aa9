package app

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

func TestNewTokenManager_RequiresDistinctSecrets(t *testing.T) {
	if _, err := NewTokenManager("", "refresh", 0, 0); err == nil {
		t.Fatal("expected error for missing access secret")
	}
	if _, err := NewTokenManager("same", "same", 0, 0); err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestTokenManager_AccessAndRefreshAreNotInterchangeable(t *testing.T) {
	m, err := NewTokenManager("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	matric := "CSC/2021/001"
	user := &domain.User{ID: uuid.New(), Email: "ada@students.test", Role: domain.RoleStudent, MatricNumber: &matric}

	pair, err := m.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if id, _ := claims.UserID(); id != user.ID {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.MatricNumber != matric || claims.IsAdmin() {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := m.ParseRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("parse refresh: %v", err)
	}

	if _, err := m.ParseAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
	if _, err := m.ParseRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
}

func TestTokenManager_RejectsExpiredTokens(t *testing.T) {
	m, err := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	issuedAt := time.Now()
	m.now = func() time.Time { return issuedAt }
	pair, err := m.Issue(&domain.User{ID: uuid.New(), Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := m.ParseAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestTokenManager_RejectsForeignSignatures(t *testing.T) {
	a, _ := NewTokenManager("access-a", "refresh-a", time.Hour, time.Hour)
	b, _ := NewTokenManager("access-b", "refresh-b", time.Hour, time.Hour)

	pair, err := a.Issue(&domain.User{ID: uuid.New(), Role: domain.RoleStudent})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.ParseAccess(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign token to be rejected, got %v", err)
	}
}

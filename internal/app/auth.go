/**
 * @description
 * Account flows: student signup, login with a tagged identifier, admin login
 * and registration, token refresh, e-mail verification, password reset and
 * change, and profile maintenance.
 *
 * @notes
 * - Unknown identifiers and wrong passwords both yield ErrInvalidCredentials.
 * - Forgot-password never reveals whether the e-mail exists.
 * - Raw one-time tokens only ever leave the service inside mailer events; the
 *   database stores their SHA-256 hash.
 */

package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/internal/store"
	"github.com/idorocodes/paxify-backend/pkg/rabbitmq"
)

const (
	defaultBcryptCost     = 12
	verificationTokenTTL  = 24 * time.Hour
	passwordResetTokenTTL = time.Hour
)

// AuthService implements account and session flows.
type AuthService struct {
	repo        store.Repository
	tokens      *TokenManager
	publisher   rabbitmq.Publisher
	logger      *zap.Logger
	emailDomain string
	bcryptCost  int
	now         func() time.Time
}

func NewAuthService(repo store.Repository, tokens *TokenManager, publisher rabbitmq.Publisher, emailDomain string, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		repo:        repo,
		tokens:      tokens,
		publisher:   publisher,
		logger:      logger.With(zap.String("component", "auth")),
		emailDomain: strings.TrimPrefix(strings.TrimSpace(emailDomain), "@"),
		bcryptCost:  defaultBcryptCost,
		now:         time.Now,
	}
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// Register creates a student account and signs the student in.
func (s *AuthService) Register(ctx context.Context, in domain.SignupInput) (*domain.AuthResult, error) {
	email, err := NormalizeInstitutionEmail(in.Email, s.emailDomain)
	if err != nil {
		return nil, err
	}
	matric, err := NormalizeMatric(in.MatricNumber)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	firstName, lastName := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if firstName == "" || lastName == "" {
		return nil, NewValidationError("first and last name are required")
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.New(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		MatricNumber: &matric,
		PasswordHash: hash,
		Role:         domain.RoleStudent,
		Department:   optionalString(in.Department),
		Level:        in.Level,
		Phone:        optionalString(in.Phone),
		IsActive:     true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	rawToken, err := s.issueOneTimeToken(ctx, store.TokenEmailVerification, user.ID, verificationTokenTTL)
	if err != nil {
		s.logger.Error("failed to create verification token", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	s.audit(ctx, &user.ID, "user_registered", "user", user.ID, map[string]any{"email": user.Email})
	s.publish(ctx, domain.EventUserRegistered, domain.UserRegisteredEvent{
		UserID:            user.ID,
		Email:             user.Email,
		FirstName:         user.FirstName,
		VerificationToken: rawToken,
		Timestamp:         s.now().UTC(),
	})

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("student registered", zap.String("user_id", user.ID.String()))
	return &domain.AuthResult{User: user, Tokens: tokens}, nil
}

// Login authenticates a student or admin by e-mail or matric number.
func (s *AuthService) Login(ctx context.Context, in domain.LoginInput) (*domain.AuthResult, error) {
	id, err := in.Identifier.Normalize()
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	var user *domain.User
	switch id.Kind {
	case domain.IdentifierEmail:
		user, err = s.repo.FindUserByEmail(ctx, id.Value)
	case domain.IdentifierMatric:
		user, err = s.repo.FindUserByMatricNumber(ctx, id.Value)
	}
	return s.completeLogin(ctx, user, err, in.Password, "")
}

// AdminLogin authenticates an administrator by e-mail.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	user, err := s.repo.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	return s.completeLogin(ctx, user, err, password, domain.RoleAdmin)
}

func (s *AuthService) completeLogin(ctx context.Context, user *domain.User, lookupErr error, password, requiredRole string) (*domain.AuthResult, error) {
	if lookupErr != nil {
		if errors.Is(lookupErr, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, lookupErr
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if requiredRole != "" && user.Role != requiredRole {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{User: user, Tokens: tokens}, nil
}

// RegisterAdmin creates an administrator account on behalf of another admin.
func (s *AuthService) RegisterAdmin(ctx context.Context, actorID uuid.UUID, in domain.AdminSignupInput) (*domain.User, error) {
	email, err := NormalizeInstitutionEmail(in.Email, "")
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:            uuid.New(),
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Email:         email,
		PasswordHash:  hash,
		Role:          domain.RoleAdmin,
		IsActive:      true,
		EmailVerified: true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.audit(ctx, &actorID, "admin_created", "user", user.ID, map[string]any{"email": user.Email})
	return user, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthTokens, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, _ := claims.UserID()
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	tokens, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Authenticate resolves an access token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	userID, _ := claims.UserID()
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// VerifyEmail redeems an e-mail verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	token, err := s.redeem(ctx, store.TokenEmailVerification, rawToken)
	if err != nil {
		return err
	}
	return s.repo.MarkEmailVerified(ctx, token.UserID)
}

// ForgotPassword starts a reset for an active account. It succeeds whether or
// not the e-mail is known.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	rawToken, err := s.issueOneTimeToken(ctx, store.TokenPasswordReset, user.ID, passwordResetTokenTTL)
	if err != nil {
		return err
	}
	s.publish(ctx, domain.EventPasswordResetRequested, domain.PasswordResetRequestedEvent{
		UserID:     user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		ResetToken: rawToken,
		ExpiresAt:  s.now().Add(passwordResetTokenTTL).UTC(),
		Timestamp:  s.now().UTC(),
	})
	s.logger.Info("password reset requested", zap.String("user_id", user.ID.String()))
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	token, err := s.redeem(ctx, store.TokenPasswordReset, rawToken)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, token.UserID, newPassword, "password_reset")
}

// ChangePassword replaces the password of an authenticated user.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return NewValidationError("new password must differ from the current password")
	}
	return s.setPassword(ctx, userID, newPassword, "password_changed")
}

func (s *AuthService) setPassword(ctx context.Context, userID uuid.UUID, password, action string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, userID, hash); err != nil {
		return err
	}
	s.audit(ctx, &userID, action, "user", userID, nil)

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		s.logger.Warn("password changed but user reload failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil
	}
	s.publish(ctx, domain.EventPasswordChanged, domain.PasswordChangedEvent{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		Timestamp: s.now().UTC(),
	})
	return nil
}

// Profile returns the caller's account.
func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

// UpdateProfile applies profile changes.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, update domain.ProfileUpdate) (*domain.User, error) {
	if update.FirstName != nil && strings.TrimSpace(*update.FirstName) == "" {
		return nil, NewValidationError("first name cannot be empty")
	}
	if update.LastName != nil && strings.TrimSpace(*update.LastName) == "" {
		return nil, NewValidationError("last name cannot be empty")
	}
	return s.repo.UpdateUserProfile(ctx, userID, update)
}

func (s *AuthService) issueOneTimeToken(ctx context.Context, kind store.TokenKind, userID uuid.UUID, ttl time.Duration) (string, error) {
	raw, err := randomHex(32)
	if err != nil {
		return "", err
	}
	token := &domain.OneTimeToken{
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(ttl).UTC(),
	}
	if err := s.repo.CreateToken(ctx, kind, token); err != nil {
		return "", fmt.Errorf("store %s token: %w", kind, err)
	}
	return raw, nil
}

func (s *AuthService) redeem(ctx context.Context, kind store.TokenKind, raw string) (*domain.OneTimeToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	token, err := s.repo.FindTokenByHash(ctx, kind, hashToken(raw))
	if err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !token.Usable(s.now()) {
		return nil, ErrInvalidToken
	}
	consumed, err := s.repo.ConsumeToken(ctx, kind, token.ID)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrInvalidToken
	}
	return token, nil
}

func (s *AuthService) audit(ctx context.Context, actor *uuid.UUID, action, entityType string, entityID uuid.UUID, details map[string]any) {
	recordAudit(ctx, s.repo, s.logger, actor, action, entityType, entityID, details)
}

func (s *AuthService) publish(ctx context.Context, routingKey string, event any) {
	publishEvent(ctx, s.publisher, s.logger, routingKey, event)
}

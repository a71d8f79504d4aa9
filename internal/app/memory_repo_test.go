package app

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/internal/store"
)

// memoryRepo is an in-memory Repository for service tests. It enforces the
// same uniqueness and conditional-update rules as the Postgres schema.
type memoryRepo struct {
	store.Repository

	mu            sync.Mutex
	users         map[uuid.UUID]*domain.User
	fees          map[uuid.UUID]*domain.FeeCategory
	payments      map[uuid.UUID]*domain.Payment
	assignments   []domain.FeeAssignment
	tokens        map[store.TokenKind][]*domain.OneTimeToken
	notifications []store.CreateNotificationBatchParams
	audits        []domain.AuditLog

	createPaymentCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:    make(map[uuid.UUID]*domain.User),
		fees:     make(map[uuid.UUID]*domain.FeeCategory),
		payments: make(map[uuid.UUID]*domain.Payment),
		tokens:   make(map[store.TokenKind][]*domain.OneTimeToken),
	}
}

func (r *memoryRepo) addStudent(email string) *domain.User {
	matric := "CSC/2021/" + email[:3]
	user := &domain.User{
		ID:           uuid.New(),
		FirstName:    "Ada",
		LastName:     "Obi",
		Email:        email,
		MatricNumber: &matric,
		Role:         domain.RoleStudent,
		IsActive:     true,
	}
	r.mu.Lock()
	r.users[user.ID] = user
	r.mu.Unlock()
	return user
}

func (r *memoryRepo) addFee(name string, amount int64, active bool) *domain.FeeCategory {
	fee := &domain.FeeCategory{
		ID:           uuid.New(),
		Name:         name,
		Amount:       decimal.NewFromInt(amount),
		CategoryType: domain.FeeTypeDues,
		IsActive:     active,
	}
	r.mu.Lock()
	r.fees[fee.ID] = fee
	r.mu.Unlock()
	return fee
}

func copyPayment(p *domain.Payment) *domain.Payment {
	cp := *p
	cp.Items = append([]domain.PaymentItem(nil), p.Items...)
	cp.GatewayResponse = append(json.RawMessage(nil), p.GatewayResponse...)
	return &cp
}

func (r *memoryRepo) paymentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

func (r *memoryRepo) onlyPayment() *domain.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		return copyPayment(p)
	}
	return nil
}

func (r *memoryRepo) CreateUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return store.ErrUserExists
		}
		if u.MatricNumber != nil && user.MatricNumber != nil && *u.MatricNumber == *user.MatricNumber {
			return store.ErrUserExists
		}
	}
	cp := *user
	cp.CreatedAt = time.Now()
	r.users[user.ID] = &cp
	return nil
}

func (r *memoryRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryRepo) findUser(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *memoryRepo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findUser(func(u *domain.User) bool { return u.Email == email })
}

func (r *memoryRepo) FindUserByMatricNumber(ctx context.Context, matric string) (*domain.User, error) {
	return r.findUser(func(u *domain.User) bool { return u.MatricNumber != nil && *u.MatricNumber == matric })
}

func (r *memoryRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (r *memoryRepo) UpdateUserPassword(ctx context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memoryRepo) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.EmailVerified = true
	return nil
}

func (r *memoryRepo) FindActiveStudentsByTarget(ctx context.Context, target domain.NotificationTarget) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		if u.Role != domain.RoleStudent || !u.IsActive {
			continue
		}
		switch target.Type {
		case domain.TargetLevel:
			if u.Level == nil || !containsInt(target.Levels, *u.Level) {
				continue
			}
		case domain.TargetDepartment:
			if u.Department == nil || !containsString(target.Departments, *u.Department) {
				continue
			}
		case domain.TargetCustomGroup:
			if !containsUUID(target.UserIDs, u.ID) {
				continue
			}
		}
		out = append(out, *u)
	}
	return out, nil
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsUUID(xs []uuid.UUID, v uuid.UUID) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func (r *memoryRepo) CreateToken(ctx context.Context, kind store.TokenKind, token *domain.OneTimeToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	cp.ID = uuid.New()
	r.tokens[kind] = append(r.tokens[kind], &cp)
	return nil
}

func (r *memoryRepo) FindTokenByHash(ctx context.Context, kind store.TokenKind, hash string) (*domain.OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens[kind] {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrTokenNotFound
}

func (r *memoryRepo) ConsumeToken(ctx context.Context, kind store.TokenKind, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens[kind] {
		if t.ID == id && t.UsedAt == nil {
			now := time.Now()
			t.UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) FindFeeCategoryByID(ctx context.Context, id uuid.UUID) (*domain.FeeCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fee, ok := r.fees[id]
	if !ok {
		return nil, store.ErrFeeCategoryNotFound
	}
	cp := *fee
	return &cp, nil
}

func (r *memoryRepo) FindActiveFeeCategoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.FeeCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FeeCategory
	for _, id := range ids {
		if fee, ok := r.fees[id]; ok && fee.IsActive {
			out = append(out, *fee)
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateFeeAssignments(ctx context.Context, params store.CreateFeeAssignmentsParams) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var created []uuid.UUID
	for _, userID := range params.UserIDs {
		open := false
		for _, a := range r.assignments {
			if a.UserID == userID && a.FeeCategoryID == params.FeeCategoryID &&
				(a.Status == domain.AssignmentPending || a.Status == domain.AssignmentOverdue) {
				open = true
				break
			}
		}
		if open {
			continue
		}
		r.assignments = append(r.assignments, domain.FeeAssignment{
			ID:            uuid.New(),
			UserID:        userID,
			FeeCategoryID: params.FeeCategoryID,
			Amount:        params.Amount,
			Status:        domain.AssignmentPending,
			DueDate:       params.DueDate,
			TargetType:    params.TargetType,
			AssignedBy:    params.AssignedBy,
		})
		created = append(created, userID)
	}
	return created, nil
}

func (r *memoryRepo) MarkFeeAssignmentsPaid(ctx context.Context, userID uuid.UUID, feeIDs []uuid.UUID, paymentID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.assignments {
		a := &r.assignments[i]
		if a.UserID == userID && containsUUID(feeIDs, a.FeeCategoryID) &&
			(a.Status == domain.AssignmentPending || a.Status == domain.AssignmentOverdue) {
			a.Status = domain.AssignmentPaid
			pid := paymentID
			a.PaymentID = &pid
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) CreatePaymentWithItems(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createPaymentCalls++
	for _, p := range r.payments {
		if p.Reference == payment.Reference {
			return store.ErrDuplicateReference
		}
		if p.IdempotencyKey == payment.IdempotencyKey {
			return store.ErrDuplicateIdempotencyKey
		}
	}
	cp := copyPayment(payment)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.payments[payment.ID] = cp
	return nil
}

func (r *memoryRepo) findPayment(match func(*domain.Payment) bool) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if match(p) {
			return copyPayment(p), nil
		}
	}
	return nil, store.ErrPaymentNotFound
}

func (r *memoryRepo) FindPaymentByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.findPayment(func(p *domain.Payment) bool { return p.ID == id })
}

func (r *memoryRepo) FindPaymentByReference(ctx context.Context, ref string) (*domain.Payment, error) {
	return r.findPayment(func(p *domain.Payment) bool { return p.Reference == ref })
}

func (r *memoryRepo) FindPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	return r.findPayment(func(p *domain.Payment) bool { return p.IdempotencyKey == key })
}

func (r *memoryRepo) FindLatestPaymentByIdempotencyBase(ctx context.Context, base string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Payment
	for _, p := range r.payments {
		if p.Status == domain.PaymentFailed {
			continue
		}
		if p.IdempotencyKey != base && !strings.HasPrefix(p.IdempotencyKey, base+":") {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, store.ErrPaymentNotFound
	}
	return copyPayment(latest), nil
}

func (r *memoryRepo) SavePaymentCheckout(ctx context.Context, id uuid.UUID, accessCode string, gatewayResponse json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != domain.PaymentPending {
		return nil
	}
	p.AccessCode = &accessCode
	p.GatewayResponse = append(json.RawMessage(nil), gatewayResponse...)
	return nil
}

func (r *memoryRepo) MarkPaymentFailed(ctx context.Context, id uuid.UUID, gatewayResponse json.RawMessage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = domain.PaymentFailed
	p.GatewayResponse = append(json.RawMessage(nil), gatewayResponse...)
	return true, nil
}

func (r *memoryRepo) MarkPaymentCompleted(ctx context.Context, id uuid.UUID, params store.MarkPaymentCompletedParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = domain.PaymentCompleted
	paidAt := params.PaidAt
	p.PaidAt = &paidAt
	channel := params.Channel
	p.Channel = &channel
	p.GatewayResponse = append(json.RawMessage(nil), params.GatewayResponse...)
	return true, nil
}

func (r *memoryRepo) SetPaymentReceiptURL(ctx context.Context, id uuid.UUID, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return store.ErrPaymentNotFound
	}
	if p.ReceiptURL == nil {
		p.ReceiptURL = &url
	}
	return nil
}

func (r *memoryRepo) ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Payment
	for _, p := range r.payments {
		if p.Status == domain.PaymentPending && p.AccessCode != nil && p.CreatedAt.Before(olderThan) {
			out = append(out, *copyPayment(p))
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateNotificationBatch(ctx context.Context, params store.CreateNotificationBatchParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, params)
	return int64(len(params.UserIDs)), nil
}

func (r *memoryRepo) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, entry)
	return nil
}

func (r *memoryRepo) auditActions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.audits))
	for _, a := range r.audits {
		out = append(out, a.Action)
	}
	return out
}

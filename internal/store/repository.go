/**
 * @description
 * This file defines the `Repository` interface, the contract for every data access
 * operation the fee-management backend needs. Business services depend on the
 * interface only, so tests can swap in in-memory stubs.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - github.com/shopspring/decimal: Naira amounts.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

// TokenKind selects the one-time token table.
type TokenKind string

const (
	TokenPasswordReset     TokenKind = "password_reset"
	TokenEmailVerification TokenKind = "email_verification"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByMatricNumber(ctx context.Context, matric string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	UpdateUserProfile(ctx context.Context, userID uuid.UUID, update domain.ProfileUpdate) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID uuid.UUID) error
	ListUsers(ctx context.Context, opts domain.UserListOptions) ([]domain.User, int, error)
	FindActiveStudentsByTarget(ctx context.Context, target domain.NotificationTarget) ([]domain.User, error)

	// One-time token methods
	CreateToken(ctx context.Context, kind TokenKind, token *domain.OneTimeToken) error
	FindTokenByHash(ctx context.Context, kind TokenKind, tokenHash string) (*domain.OneTimeToken, error)
	ConsumeToken(ctx context.Context, kind TokenKind, tokenID uuid.UUID) (bool, error)
	PurgeTokens(ctx context.Context, kind TokenKind, before time.Time) (int64, error)

	// Fee category methods
	CreateFeeCategory(ctx context.Context, fee *domain.FeeCategory) error
	FindFeeCategoryByID(ctx context.Context, feeID uuid.UUID) (*domain.FeeCategory, error)
	UpdateFeeCategory(ctx context.Context, feeID uuid.UUID, update domain.FeeCategoryUpdate) (*domain.FeeCategory, error)
	ListActiveFeeCategories(ctx context.Context, filter domain.FeeFilter) ([]domain.FeeCategory, error)
	FindActiveFeeCategoriesByIDs(ctx context.Context, feeIDs []uuid.UUID) ([]domain.FeeCategory, error)

	// Fee assignment methods
	CreateFeeAssignments(ctx context.Context, params CreateFeeAssignmentsParams) ([]uuid.UUID, error)
	ListDueAssignments(ctx context.Context, userID uuid.UUID, opts domain.DueListOptions) ([]domain.FeeAssignment, int, error)
	SumOpenAssignments(ctx context.Context, userID uuid.UUID) (int, decimal.Decimal, error)
	MarkFeeAssignmentsPaid(ctx context.Context, userID uuid.UUID, feeIDs []uuid.UUID, paymentID uuid.UUID) (int64, error)
	MarkOverdueAssignments(ctx context.Context, now time.Time) (int64, error)

	// Payment methods
	CreatePaymentWithItems(ctx context.Context, payment *domain.Payment) error
	FindPaymentByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error)
	FindPaymentByReference(ctx context.Context, reference string) (*domain.Payment, error)
	FindPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
	FindLatestPaymentByIdempotencyBase(ctx context.Context, base string) (*domain.Payment, error)
	SavePaymentCheckout(ctx context.Context, paymentID uuid.UUID, accessCode string, gatewayResponse json.RawMessage) error
	MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID, gatewayResponse json.RawMessage) (bool, error)
	MarkPaymentCompleted(ctx context.Context, paymentID uuid.UUID, params MarkPaymentCompletedParams) (bool, error)
	SetPaymentReceiptURL(ctx context.Context, paymentID uuid.UUID, receiptURL string) error
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID, opts domain.PaymentListOptions) ([]domain.Payment, int, error)
	GetUserPaymentStats(ctx context.Context, userID uuid.UUID) (*domain.PaymentStats, error)
	ListPayments(ctx context.Context, opts domain.PaymentListOptions) ([]domain.PaymentWithPayer, int, error)
	ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payment, error)
	ListCompletedPaymentsWithoutReceipt(ctx context.Context, limit int) ([]domain.Payment, error)

	// Reporting methods
	GetAdminDashboard(ctx context.Context, monthStart time.Time) (*domain.AdminDashboard, error)
	GetRevenueReport(ctx context.Context, start, end time.Time) (*domain.RevenueReport, error)

	// Notification methods
	CreateNotificationBatch(ctx context.Context, params CreateNotificationBatchParams) (int64, error)
	ListNotifications(ctx context.Context, userID uuid.UUID, opts domain.NotificationListOptions) ([]domain.Notification, int, error)
	MarkNotificationsRead(ctx context.Context, userID uuid.UUID, notificationIDs []uuid.UUID) (int64, error)
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error)

	// Catalog methods
	ListFaculties(ctx context.Context) ([]domain.Faculty, error)
	CreateFaculty(ctx context.Context, input domain.FacultyInput) (*domain.Faculty, error)
	UpdateFaculty(ctx context.Context, facultyID uuid.UUID, input domain.FacultyInput) (*domain.Faculty, error)
	ListDepartments(ctx context.Context) ([]domain.Department, error)
	CreateDepartment(ctx context.Context, input domain.DepartmentInput) (*domain.Department, error)
	UpdateDepartment(ctx context.Context, departmentID uuid.UUID, input domain.DepartmentInput) (*domain.Department, error)
	DeleteDepartment(ctx context.Context, departmentID uuid.UUID) error

	// Audit methods
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
}

// CreateFeeAssignmentsParams describes one assignment run: the same fee for many students.
type CreateFeeAssignmentsParams struct {
	FeeCategoryID uuid.UUID
	Amount        decimal.Decimal
	DueDate       *time.Time
	Description   *string
	TargetType    string
	AssignedBy    *uuid.UUID
	UserIDs       []uuid.UUID
}

// MarkPaymentCompletedParams carries the verified gateway outcome.
type MarkPaymentCompletedParams struct {
	Channel         string
	PaidAt          time.Time
	GatewayResponse json.RawMessage
}

// CreateNotificationBatchParams writes one identical notification per user.
type CreateNotificationBatchParams struct {
	UserIDs        []uuid.UUID
	Type           string
	Title          string
	Message        string
	Metadata       json.RawMessage
	TargetType     string
	TargetCriteria json.RawMessage
}

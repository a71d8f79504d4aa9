package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Faculty maps to the `faculties` table.
type Faculty struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      *string   `json:"code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Department maps to the `departments` table.
type Department struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Code      *string    `json:"code,omitempty"`
	FacultyID *uuid.UUID `json:"faculty_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FacultyInput creates or updates a faculty.
type FacultyInput struct {
	Name string  `json:"name" validate:"required,max=150"`
	Code *string `json:"code" validate:"omitempty,max=20"`
}

// DepartmentInput creates or updates a department.
type DepartmentInput struct {
	Name      string     `json:"name" validate:"required,max=150"`
	Code      *string    `json:"code" validate:"omitempty,max=20"`
	FacultyID *uuid.UUID `json:"faculty_id"`
}

// AuditLog maps to the `audit_logs` table.
type AuditLog struct {
	ID         uuid.UUID       `json:"id"`
	UserID     *uuid.UUID      `json:"user_id,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   *uuid.UUID      `json:"entity_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AdminDashboard is the admin overview.
type AdminDashboard struct {
	TotalPayments   int                `json:"total_payments"`
	PendingPayments int                `json:"pending_payments"`
	TotalRevenue    decimal.Decimal    `json:"total_revenue"`
	MonthlyRevenue  decimal.Decimal    `json:"monthly_revenue"`
	ActiveStudents  int                `json:"active_students"`
	RecentPayments  []PaymentWithPayer `json:"recent_payments"`
}

// StudentDashboard is the student overview.
type StudentDashboard struct {
	TotalPaid           decimal.Decimal `json:"total_paid"`
	CompletedPayments   int             `json:"completed_payments"`
	PendingAssignments  int             `json:"pending_assignments"`
	OutstandingAmount   decimal.Decimal `json:"outstanding_amount"`
	UnreadNotifications int             `json:"unread_notifications"`
	RecentPayments      []Payment       `json:"recent_payments"`
}

// RevenueReport aggregates completed payments over a date range.
type RevenueReport struct {
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	PaymentCount  int             `json:"payment_count"`
	DailyRevenue  []RevenueBucket `json:"daily_revenue"`
	ByFeeCategory []RevenueBucket `json:"by_fee_category"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// RevenueBucket is one row of a revenue breakdown.
type RevenueBucket struct {
	Label  string          `json:"label"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

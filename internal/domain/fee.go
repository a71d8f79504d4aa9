package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	FeeTypeDues      = "dues"
	FeeTypeManual    = "manual"
	FeeTypeExcursion = "excursion"
	FeeTypeOther     = "other"
)

// FeeCategory is a catalog entry a student can pay for.
// Amount is in naira. Categories are deactivated, never deleted.
type FeeCategory struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Description     *string         `json:"description,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	CategoryType    string          `json:"category_type"`
	Department      *string         `json:"department,omitempty"`
	Level           *int            `json:"level,omitempty"`
	IsMandatory     bool            `json:"is_mandatory"`
	AcademicSession *string         `json:"academic_session,omitempty"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedBy       *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FeeCategoryInput is the admin payload for creating a fee category.
type FeeCategoryInput struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Description     *string         `json:"description" validate:"omitempty,max=1000"`
	Amount          decimal.Decimal `json:"amount"`
	CategoryType    string          `json:"category_type" validate:"required,oneof=dues manual excursion other"`
	Department      *string         `json:"department" validate:"omitempty,max=150"`
	Level           *int            `json:"level" validate:"omitempty,oneof=100 200 300 400 500 600 700"`
	IsMandatory     bool            `json:"is_mandatory"`
	AcademicSession *string         `json:"academic_session" validate:"omitempty,max=20"`
	DueDate         *time.Time      `json:"due_date"`
}

// FeeCategoryUpdate is the admin payload for updating a fee category. Nil means unchanged.
type FeeCategoryUpdate struct {
	Name            *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description     *string          `json:"description" validate:"omitempty,max=1000"`
	Amount          *decimal.Decimal `json:"amount"`
	CategoryType    *string          `json:"category_type" validate:"omitempty,oneof=dues manual excursion other"`
	Department      *string          `json:"department" validate:"omitempty,max=150"`
	Level           *int             `json:"level" validate:"omitempty,oneof=100 200 300 400 500 600 700"`
	IsMandatory     *bool            `json:"is_mandatory"`
	AcademicSession *string          `json:"academic_session" validate:"omitempty,max=20"`
	DueDate         *time.Time       `json:"due_date"`
	IsActive        *bool            `json:"is_active"`
}

// FeeFilter narrows the active fee listing. Fees with a NULL department or
// level apply to every student.
type FeeFilter struct {
	Department   string
	Level        *int
	CategoryType string
}

const (
	AssignmentPending   = "pending"
	AssignmentOverdue   = "overdue"
	AssignmentPaid      = "paid"
	AssignmentCancelled = "cancelled"
)

// FeeAssignment is a per-student obligation created before any payment exists.
type FeeAssignment struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	FeeCategoryID uuid.UUID       `json:"fee_category_id"`
	FeeName       string          `json:"fee_name,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Description   *string         `json:"description,omitempty"`
	TargetType    string          `json:"target_type"`
	AssignedBy    *uuid.UUID      `json:"assigned_by,omitempty"`
	PaymentID     *uuid.UUID      `json:"payment_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AssignFeeInput is the admin payload for assigning a fee to a group of students.
type AssignFeeInput struct {
	FeeCategoryID uuid.UUID   `json:"fee_category_id" validate:"required"`
	TargetType    string      `json:"target_type" validate:"required,oneof=ALL LEVEL FACULTY DEPARTMENT CUSTOM_GROUP"`
	Levels        []int       `json:"levels" validate:"omitempty,dive,oneof=100 200 300 400 500 600 700"`
	Departments   []string    `json:"departments" validate:"omitempty,dive,min=1"`
	FacultyIDs    []uuid.UUID `json:"faculty_ids"`
	StudentIDs    []uuid.UUID `json:"student_ids"`
	DueDate       *time.Time  `json:"due_date"`
	Description   *string     `json:"description" validate:"omitempty,max=500"`
}

// AssignFeeResult summarizes an assignment run.
type AssignFeeResult struct {
	FeeCategoryID uuid.UUID `json:"fee_category_id"`
	Matched       int       `json:"matched"`
	Assigned      int       `json:"assigned"`
	Skipped       int       `json:"skipped"`
	Notified      int       `json:"notified"`
}

// DueListOptions filters a student's open assignments.
type DueListOptions struct {
	Status string
	SortBy string
	Page   int
	Limit  int
}

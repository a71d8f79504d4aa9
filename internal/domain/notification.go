package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Target types accepted by the notification dispatcher and fee assignment.
const (
	TargetAll         = "ALL"
	TargetLevel       = "LEVEL"
	TargetFaculty     = "FACULTY"
	TargetDepartment  = "DEPARTMENT"
	TargetCustomGroup = "CUSTOM_GROUP"
)

// Notification types.
const (
	NotificationFeeAssigned      = "FEE_ASSIGNED"
	NotificationPaymentCompleted = "PAYMENT_COMPLETED"
	NotificationAnnouncement     = "ANNOUNCEMENT"
)

// Notification maps to the `notifications` table.
type Notification struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	TargetType     *string         `json:"target_type,omitempty"`
	TargetCriteria json.RawMessage `json:"target_criteria,omitempty"`
	IsRead         bool            `json:"is_read"`
	ReadAt         *time.Time      `json:"read_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NotificationTarget selects the users a notification fans out to.
type NotificationTarget struct {
	Type        string      `json:"type" validate:"required,oneof=ALL LEVEL FACULTY DEPARTMENT CUSTOM_GROUP"`
	Levels      []int       `json:"levels,omitempty"`
	Departments []string    `json:"departments,omitempty"`
	FacultyIDs  []uuid.UUID `json:"faculty_ids,omitempty"`
	UserIDs     []uuid.UUID `json:"student_ids,omitempty"`
}

// NotificationMessage is the payload written for every matched user.
type NotificationMessage struct {
	Type     string         `json:"type" validate:"required,max=50"`
	Title    string         `json:"title" validate:"required,max=200"`
	Message  string         `json:"message" validate:"required,max=2000"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NotificationListOptions filters a user's notifications.
type NotificationListOptions struct {
	Page   int
	Limit  int
	Type   string
	IsRead *bool
}

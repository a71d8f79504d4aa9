package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

type markReadRequest struct {
	NotificationIDs []uuid.UUID `json:"notification_ids"`
}

type notificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
	Pagination    domain.Pagination     `json:"pagination"`
}

type duePaymentsResponse struct {
	Assignments []domain.FeeAssignment `json:"assignments"`
	Pagination  domain.Pagination      `json:"pagination"`
}

func (h *Handlers) StudentDashboardHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	dashboard, err := h.svc.Student.Dashboard(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", dashboard)
}

// ListFeesHandler returns the fees that apply to a student, or the whole
// active catalog (optionally filtered) for an admin.
func (h *Handlers) ListFeesHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	categoryType := strings.TrimSpace(r.URL.Query().Get("category_type"))

	var (
		fees []domain.FeeCategory
		err  error
	)
	if user.IsAdmin() {
		filter := domain.FeeFilter{
			Department:   strings.TrimSpace(r.URL.Query().Get("department")),
			CategoryType: categoryType,
		}
		level, lerr := intQuery(r, "level")
		if lerr != nil {
			h.writeError(w, r, lerr)
			return
		}
		if level > 0 {
			filter.Level = &level
		}
		fees, err = h.svc.Fees.ListFees(r.Context(), filter)
	} else {
		fees, err = h.svc.Fees.ListFeesForStudent(r.Context(), user.ID, categoryType)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", fees)
}

func (h *Handlers) GetFeeHandler(w http.ResponseWriter, r *http.Request) {
	feeID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	fee, err := h.svc.Fees.GetFee(r.Context(), feeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", fee)
}

// DuePaymentsHandler lists the caller's fee assignments.
func (h *Handlers) DuePaymentsHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	page, limit, err := pageQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, pagination, err := h.svc.Fees.DuePayments(r.Context(), user.ID, domain.DueListOptions{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		SortBy: strings.TrimSpace(r.URL.Query().Get("sort_by")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", duePaymentsResponse{Assignments: items, Pagination: pagination})
}

func (h *Handlers) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	page, limit, err := pageQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	isRead, err := boolQuery(r, "is_read")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, pagination, unread, err := h.svc.Notifications.ListNotifications(r.Context(), user.ID, domain.NotificationListOptions{
		Page:   page,
		Limit:  limit,
		Type:   strings.TrimSpace(r.URL.Query().Get("type")),
		IsRead: isRead,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", notificationsResponse{
		Notifications: items,
		UnreadCount:   unread,
		Pagination:    pagination,
	})
}

// MarkNotificationsReadHandler marks the listed notifications read; an empty
// list marks all of them.
func (h *Handlers) MarkNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req markReadRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.svc.Notifications.MarkRead(r.Context(), user.ID, req.NotificationIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Notifications marked as read", map[string]int64{"updated": updated})
}

func (h *Handlers) ListDepartmentsHandler(w http.ResponseWriter, r *http.Request) {
	departments, err := h.svc.Catalog.ListDepartments(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", departments)
}

func (h *Handlers) ListFacultiesHandler(w http.ResponseWriter, r *http.Request) {
	faculties, err := h.svc.Catalog.ListFaculties(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", faculties)
}

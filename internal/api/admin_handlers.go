package api

import (
	"net/http"
	"strings"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

type dispatchNotificationRequest struct {
	Target domain.NotificationTarget `json:"target"`
	domain.NotificationMessage
}

type paymentsPageResponse struct {
	Payments   []domain.PaymentWithPayer `json:"payments"`
	Pagination domain.Pagination         `json:"pagination"`
}

type usersPageResponse struct {
	Users      []domain.User     `json:"users"`
	Pagination domain.Pagination `json:"pagination"`
}

func (h *Handlers) AdminDashboardHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Admin.Dashboard(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", stats)
}

func (h *Handlers) AdminListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := paymentListOptions(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	payments, pagination, err := h.svc.Admin.ListPayments(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", paymentsPageResponse{Payments: payments, Pagination: pagination})
}

func (h *Handlers) AdminGetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	payment, err := h.svc.Admin.GetPayment(r.Context(), paymentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", payment)
}

func (h *Handlers) AdminListUsersHandler(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	users, pagination, err := h.svc.Admin.ListUsers(r.Context(), domain.UserListOptions{
		Page:   page,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
		Role:   strings.TrimSpace(r.URL.Query().Get("role")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", usersPageResponse{Users: users, Pagination: pagination})
}

func (h *Handlers) CreateFeeHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	var req domain.FeeCategoryInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	fee, err := h.svc.Fees.CreateFee(r.Context(), actor.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Fee category created", fee)
}

func (h *Handlers) UpdateFeeHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	feeID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req domain.FeeCategoryUpdate
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	fee, err := h.svc.Fees.UpdateFee(r.Context(), actor.ID, feeID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Fee category updated", fee)
}

// DeleteFeeHandler deactivates the fee; paid items keep their snapshots.
func (h *Handlers) DeleteFeeHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	feeID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	fee, err := h.svc.Fees.DeactivateFee(r.Context(), actor.ID, feeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Fee category deactivated", fee)
}

func (h *Handlers) AssignFeeHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	var req domain.AssignFeeInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Fees.AssignFee(r.Context(), actor.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Fee assigned", result)
}

// DispatchNotificationHandler fans a message out to the targeted students.
func (h *Handlers) DispatchNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var req dispatchNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Type == "" {
		req.Type = domain.NotificationAnnouncement
	}
	if err := validateStruct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sent, err := h.svc.Notifications.Dispatch(r.Context(), req.Target, req.NotificationMessage)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Notifications sent", map[string]int{"recipients": sent})
}

// RevenueReportHandler renders the report as a PDF, or JSON with ?format=json.
func (h *Handlers) RevenueReportHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	if strings.EqualFold(q.Get("format"), "json") {
		report, err := h.svc.Admin.RevenueReport(r.Context(), start, end)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusOK, "", report)
		return
	}
	doc, filename, err := h.svc.Admin.RevenueReportPDF(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writePDF(w, filename, doc)
}

func (h *Handlers) CreateFacultyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	var req domain.FacultyInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	faculty, err := h.svc.Catalog.CreateFaculty(r.Context(), actor.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Faculty created", faculty)
}

func (h *Handlers) UpdateFacultyHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	facultyID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req domain.FacultyInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	faculty, err := h.svc.Catalog.UpdateFaculty(r.Context(), actor.ID, facultyID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Faculty updated", faculty)
}

func (h *Handlers) CreateDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	var req domain.DepartmentInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	department, err := h.svc.Catalog.CreateDepartment(r.Context(), actor.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Department created", department)
}

func (h *Handlers) UpdateDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	departmentID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req domain.DepartmentInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	department, err := h.svc.Catalog.UpdateDepartment(r.Context(), actor.ID, departmentID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Department updated", department)
}

func (h *Handlers) DeleteDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	departmentID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Catalog.DeleteDepartment(r.Context(), actor.ID, departmentID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Department deleted", nil)
}

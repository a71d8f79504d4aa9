package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/internal/store"
	"github.com/idorocodes/paxify-backend/pkg/pdf"
)

const reportDateLayout = "2006-01-02"

// AdminService serves the admin dashboard, listings and reports.
type AdminService struct {
	repo   store.Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewAdminService(repo store.Repository, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{repo: repo, logger: logger.With(zap.String("component", "admin")), now: time.Now}
}

// Dashboard returns platform totals and the most recent payments.
func (s *AdminService) Dashboard(ctx context.Context) (*domain.AdminDashboard, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.repo.GetAdminDashboard(ctx, monthStart)
}

// ListPayments returns a page of all payments with payer details.
func (s *AdminService) ListPayments(ctx context.Context, opts domain.PaymentListOptions) ([]domain.PaymentWithPayer, domain.Pagination, error) {
	opts.Page, opts.Limit = domain.NormalizePage(opts.Page, opts.Limit, 20, 100)
	switch opts.Status {
	case "", domain.PaymentPending, domain.PaymentCompleted, domain.PaymentFailed:
	default:
		return nil, domain.Pagination{}, NewValidationError("unsupported payment status %q", opts.Status)
	}
	opts.Search = strings.TrimSpace(opts.Search)
	payments, total, err := s.repo.ListPayments(ctx, opts)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return payments, domain.NewPagination(opts.Page, opts.Limit, total), nil
}

// GetPayment returns any payment with its items.
func (s *AdminService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	return s.repo.FindPaymentByID(ctx, paymentID)
}

// ListUsers returns a page of accounts.
func (s *AdminService) ListUsers(ctx context.Context, opts domain.UserListOptions) ([]domain.User, domain.Pagination, error) {
	opts.Page, opts.Limit = domain.NormalizePage(opts.Page, opts.Limit, 20, 100)
	switch opts.Role {
	case "", domain.RoleStudent, domain.RoleAdmin:
	default:
		return nil, domain.Pagination{}, NewValidationError("unsupported role %q", opts.Role)
	}
	opts.Search = strings.TrimSpace(opts.Search)
	users, total, err := s.repo.ListUsers(ctx, opts)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return users, domain.NewPagination(opts.Page, opts.Limit, total), nil
}

// RevenueReport aggregates completed payments between two inclusive
// YYYY-MM-DD dates.
func (s *AdminService) RevenueReport(ctx context.Context, startDate, endDate string) (*domain.RevenueReport, error) {
	start, end, err := parseReportRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	report, err := s.repo.GetRevenueReport(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	report.StartDate = start
	report.EndDate = end
	report.GeneratedAt = s.now().UTC()
	return report, nil
}

// RevenueReportPDF renders the revenue report as a PDF document.
func (s *AdminService) RevenueReportPDF(ctx context.Context, startDate, endDate string) ([]byte, string, error) {
	report, err := s.RevenueReport(ctx, startDate, endDate)
	if err != nil {
		return nil, "", err
	}
	doc, err := pdf.RenderRevenueReport(pdf.RevenueReport{
		StartDate:     report.StartDate,
		EndDate:       report.EndDate,
		GeneratedAt:   report.GeneratedAt,
		Currency:      domain.DefaultCurrency,
		Total:         report.TotalRevenue,
		PaymentCount:  report.PaymentCount,
		Daily:         lineItems(report.DailyRevenue),
		ByFeeCategory: lineItems(report.ByFeeCategory),
	})
	if err != nil {
		return nil, "", fmt.Errorf("render revenue report: %w", err)
	}
	filename := fmt.Sprintf("revenue-%s-to-%s.pdf", report.StartDate.Format(reportDateLayout), report.EndDate.Format(reportDateLayout))
	return doc, filename, nil
}

func parseReportRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(reportDateLayout, strings.TrimSpace(startDate))
	if err != nil {
		return time.Time{}, time.Time{}, NewValidationError("start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(reportDateLayout, strings.TrimSpace(endDate))
	if err != nil {
		return time.Time{}, time.Time{}, NewValidationError("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, NewValidationError("start_date must not be after end_date")
	}
	return start, end, nil
}

func lineItems(buckets []domain.RevenueBucket) []pdf.LineItem {
	items := make([]pdf.LineItem, 0, len(buckets))
	for _, b := range buckets {
		items = append(items, pdf.LineItem{Label: b.Label, Count: b.Count, Amount: b.Amount})
	}
	return items
}

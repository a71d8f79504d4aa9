package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

func (r *PostgresRepository) ListFaculties(ctx context.Context) ([]domain.Faculty, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, code, created_at, updated_at FROM faculties ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Faculty, 0)
	for rows.Next() {
		var f domain.Faculty
		if err := rows.Scan(&f.ID, &f.Name, &f.Code, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateFaculty(ctx context.Context, input domain.FacultyInput) (*domain.Faculty, error) {
	f := domain.Faculty{ID: uuid.New(), Name: input.Name, Code: input.Code}
	err := r.db.QueryRow(ctx,
		`INSERT INTO faculties (id, name, code) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		f.ID, f.Name, f.Code,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return &f, nil
}

func (r *PostgresRepository) UpdateFaculty(ctx context.Context, facultyID uuid.UUID, input domain.FacultyInput) (*domain.Faculty, error) {
	var f domain.Faculty
	err := r.db.QueryRow(ctx, `
		UPDATE faculties SET name = $2, code = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, code, created_at, updated_at`,
		facultyID, input.Name, input.Code,
	).Scan(&f.ID, &f.Name, &f.Code, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFacultyNotFound
		}
		if _, ok := uniqueConstraint(err); ok {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return &f, nil
}

func (r *PostgresRepository) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, code, faculty_id, created_at, updated_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Department, 0)
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Code, &d.FacultyID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateDepartment(ctx context.Context, input domain.DepartmentInput) (*domain.Department, error) {
	d := domain.Department{ID: uuid.New(), Name: input.Name, Code: input.Code, FacultyID: input.FacultyID}
	err := r.db.QueryRow(ctx,
		`INSERT INTO departments (id, name, code, faculty_id) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Code, d.FacultyID,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) UpdateDepartment(ctx context.Context, departmentID uuid.UUID, input domain.DepartmentInput) (*domain.Department, error) {
	var d domain.Department
	err := r.db.QueryRow(ctx, `
		UPDATE departments SET name = $2, code = $3, faculty_id = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, code, faculty_id, created_at, updated_at`,
		departmentID, input.Name, input.Code, input.FacultyID,
	).Scan(&d.ID, &d.Name, &d.Code, &d.FacultyID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepartmentNotFound
		}
		if _, ok := uniqueConstraint(err); ok {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return &d, nil
}

func (r *PostgresRepository) DeleteDepartment(ctx context.Context, departmentID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM departments WHERE id = $1`, departmentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDepartmentNotFound
	}
	return nil
}

// GetAdminDashboard collects the admin overview counters and the ten latest payments.
func (r *PostgresRepository) GetAdminDashboard(ctx context.Context, monthStart time.Time) (*domain.AdminDashboard, error) {
	var dash domain.AdminDashboard
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed' AND paid_at >= $1), 0)
		FROM payments
	`
	if err := r.db.QueryRow(ctx, query, monthStart).Scan(
		&dash.TotalPayments,
		&dash.PendingPayments,
		&dash.TotalRevenue,
		&dash.MonthlyRevenue,
	); err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = 'student' AND is_active = TRUE`,
	).Scan(&dash.ActiveStudents); err != nil {
		return nil, err
	}

	recent, _, err := r.ListPayments(ctx, domain.PaymentListOptions{Page: 1, Limit: 10})
	if err != nil {
		return nil, err
	}
	dash.RecentPayments = recent
	return &dash, nil
}

// GetRevenueReport aggregates completed payments paid within [start, end).
func (r *PostgresRepository) GetRevenueReport(ctx context.Context, start, end time.Time) (*domain.RevenueReport, error) {
	report := domain.RevenueReport{
		StartDate:     start,
		EndDate:       end,
		DailyRevenue:  []domain.RevenueBucket{},
		ByFeeCategory: []domain.RevenueBucket{},
	}

	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM payments
		WHERE status = 'completed' AND paid_at >= $1 AND paid_at < $2`,
		start, end,
	).Scan(&report.PaymentCount, &report.TotalRevenue)
	if err != nil {
		return nil, err
	}

	daily, err := r.revenueBuckets(ctx, `
		SELECT to_char(date_trunc('day', paid_at), 'YYYY-MM-DD'), COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM payments
		WHERE status = 'completed' AND paid_at >= $1 AND paid_at < $2
		GROUP BY 1
		ORDER BY 1`, start, end)
	if err != nil {
		return nil, err
	}
	report.DailyRevenue = daily

	byFee, err := r.revenueBuckets(ctx, `
		SELECT i.name, COUNT(*), COALESCE(SUM(i.amount), 0)
		FROM payment_items i
		JOIN payments p ON p.id = i.payment_id
		WHERE p.status = 'completed' AND p.paid_at >= $1 AND p.paid_at < $2
		GROUP BY i.name
		ORDER BY 3 DESC`, start, end)
	if err != nil {
		return nil, err
	}
	report.ByFeeCategory = byFee
	return &report, nil
}

func (r *PostgresRepository) revenueBuckets(ctx context.Context, query string, args ...any) ([]domain.RevenueBucket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RevenueBucket, 0)
	for rows.Next() {
		var (
			bucket domain.RevenueBucket
			amount decimal.Decimal
		)
		if err := rows.Scan(&bucket.Label, &bucket.Count, &amount); err != nil {
			return nil, err
		}
		bucket.Amount = amount
		out = append(out, bucket)
	}
	return out, rows.Err()
}

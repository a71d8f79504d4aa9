package app

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/internal/store"
)

// CatalogService maintains faculties and departments.
type CatalogService struct {
	repo   store.Repository
	logger *zap.Logger
}

func NewCatalogService(repo store.Repository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, logger: logger.With(zap.String("component", "catalog"))}
}

func (s *CatalogService) ListFaculties(ctx context.Context) ([]domain.Faculty, error) {
	return s.repo.ListFaculties(ctx)
}

func (s *CatalogService) CreateFaculty(ctx context.Context, actorID uuid.UUID, in domain.FacultyInput) (*domain.Faculty, error) {
	name, code, err := normalizeCatalogName(in.Name, in.Code)
	if err != nil {
		return nil, err
	}
	in.Name, in.Code = name, code
	faculty, err := s.repo.CreateFaculty(ctx, in)
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repo, s.logger, &actorID, "faculty_created", "faculty", faculty.ID, map[string]any{"name": faculty.Name})
	return faculty, nil
}

func (s *CatalogService) UpdateFaculty(ctx context.Context, actorID, facultyID uuid.UUID, in domain.FacultyInput) (*domain.Faculty, error) {
	name, code, err := normalizeCatalogName(in.Name, in.Code)
	if err != nil {
		return nil, err
	}
	in.Name, in.Code = name, code
	faculty, err := s.repo.UpdateFaculty(ctx, facultyID, in)
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repo, s.logger, &actorID, "faculty_updated", "faculty", faculty.ID, nil)
	return faculty, nil
}

func (s *CatalogService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	return s.repo.ListDepartments(ctx)
}

func (s *CatalogService) CreateDepartment(ctx context.Context, actorID uuid.UUID, in domain.DepartmentInput) (*domain.Department, error) {
	name, code, err := normalizeCatalogName(in.Name, in.Code)
	if err != nil {
		return nil, err
	}
	in.Name, in.Code = name, code
	department, err := s.repo.CreateDepartment(ctx, in)
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repo, s.logger, &actorID, "department_created", "department", department.ID, map[string]any{"name": department.Name})
	return department, nil
}

func (s *CatalogService) UpdateDepartment(ctx context.Context, actorID, departmentID uuid.UUID, in domain.DepartmentInput) (*domain.Department, error) {
	name, code, err := normalizeCatalogName(in.Name, in.Code)
	if err != nil {
		return nil, err
	}
	in.Name, in.Code = name, code
	department, err := s.repo.UpdateDepartment(ctx, departmentID, in)
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repo, s.logger, &actorID, "department_updated", "department", department.ID, nil)
	return department, nil
}

func (s *CatalogService) DeleteDepartment(ctx context.Context, actorID, departmentID uuid.UUID) error {
	if err := s.repo.DeleteDepartment(ctx, departmentID); err != nil {
		return err
	}
	recordAudit(ctx, s.repo, s.logger, &actorID, "department_deleted", "department", departmentID, nil)
	return nil
}

// normalizeCatalogName trims the name and upper-cases the optional code.
func normalizeCatalogName(name string, code *string) (string, *string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, NewValidationError("name is required")
	}
	if code == nil {
		return name, nil, nil
	}
	normalized := strings.ToUpper(strings.TrimSpace(*code))
	if normalized == "" {
		return name, nil, nil
	}
	return name, &normalized, nil
}

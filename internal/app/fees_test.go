package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

func TestAssignFee_SkipsStudentsWhoAlreadyOwe(t *testing.T) {
	repo := newMemoryRepo()
	dept := "Computer Science"
	for _, email := range []string{"ada@students.test", "bola@students.test"} {
		repo.addStudent(email).Department = &dept
	}
	fee := repo.addFee("Lab fee", 2500, true)
	publisher := &publisherStub{}
	svc := NewFeeService(repo, NewDispatcher(repo, nil), publisher, nil)
	admin := uuid.New()
	input := domain.AssignFeeInput{
		FeeCategoryID: fee.ID,
		TargetType:    domain.TargetDepartment,
		Departments:   []string{dept},
	}

	first, err := svc.AssignFee(context.Background(), admin, input)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if first.Matched != 2 || first.Assigned != 2 || first.Notified != 2 {
		t.Fatalf("unexpected first run %+v", first)
	}
	if publisher.published(domain.EventFeeAssigned) != 2 {
		t.Fatal("expected one fee.assigned event per student")
	}

	second, err := svc.AssignFee(context.Background(), admin, input)
	if err != nil {
		t.Fatalf("assign again: %v", err)
	}
	if second.Assigned != 0 || second.Skipped != 2 {
		t.Fatalf("expected every student to be skipped, got %+v", second)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("expected no new notifications, got %d batches", len(repo.notifications))
	}
}

func TestAssignFee_Errors(t *testing.T) {
	repo := newMemoryRepo()
	inactive := repo.addFee("Old levy", 1000, false)
	active := repo.addFee("Levy", 1000, true)
	svc := NewFeeService(repo, nil, nil, nil)

	_, err := svc.AssignFee(context.Background(), uuid.New(), domain.AssignFeeInput{FeeCategoryID: inactive.ID, TargetType: domain.TargetAll})
	if !IsValidation(err) {
		t.Fatalf("expected validation error for inactive fee, got %v", err)
	}

	_, err = svc.AssignFee(context.Background(), uuid.New(), domain.AssignFeeInput{FeeCategoryID: active.ID, TargetType: domain.TargetAll})
	if !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets with no students, got %v", err)
	}
}

func TestCreateFee_RejectsNonPositiveAmount(t *testing.T) {
	svc := NewFeeService(newMemoryRepo(), nil, nil, nil)

	_, err := svc.CreateFee(context.Background(), uuid.New(), domain.FeeCategoryInput{
		Name:         "Free",
		Amount:       decimal.Zero,
		CategoryType: domain.FeeTypeOther,
	})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

package plans

import (
	"context"
	"testing"

	"github.com/clouddrivehq/clouddrive-backend/pkg/db/models"
	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
	pkgerrors "github.com/clouddrivehq/clouddrive-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubPlanRepo struct {
	activeRows    []models.StoragePlan
	listErr       error
	plans         map[string]*models.StoragePlan
	created       *models.StoragePlan
	createErr     error
	updated       *models.StoragePlan
	updateErr     error
	statusUpdates map[string]enums.PlanStatus
	deleted       []string
	deleteErr     error
	refCount      int64
	refErr        error
}

func newStubPlanRepo() *stubPlanRepo {
	return &stubPlanRepo{
		plans:         make(map[string]*models.StoragePlan),
		statusUpdates: make(map[string]enums.PlanStatus),
	}
}

func (s *stubPlanRepo) ListActive(ctx context.Context) ([]models.StoragePlan, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.activeRows, nil
}

func (s *stubPlanRepo) FindByID(ctx context.Context, id string) (*models.StoragePlan, error) {
	plan, ok := s.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *plan
	return &copied, nil
}

func (s *stubPlanRepo) FindDefault(ctx context.Context) (*models.StoragePlan, error) {
	for _, plan := range s.plans {
		if plan.IsDefault {
			copied := *plan
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPlanRepo) Create(ctx context.Context, plan *models.StoragePlan) (*models.StoragePlan, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = plan
	s.plans[plan.ID] = plan
	return plan, nil
}

func (s *stubPlanRepo) Update(ctx context.Context, plan *models.StoragePlan) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = plan
	s.plans[plan.ID] = plan
	return nil
}

func (s *stubPlanRepo) UpdateStatus(ctx context.Context, id string, status enums.PlanStatus) error {
	if _, ok := s.plans[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.statusUpdates[id] = status
	s.plans[id].Status = status
	return nil
}

func (s *stubPlanRepo) Delete(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.plans[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.plans, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubPlanRepo) CountReferences(ctx context.Context, id string) (int64, error) {
	if s.refErr != nil {
		return 0, s.refErr
	}
	return s.refCount, nil
}

func newTestService(t *testing.T, repo plansRepository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func validInput() PlanInput {
	return PlanInput{
		ID:               "mega",
		Name:             "Mega",
		StorageBytes:     1 << 40,
		MaxFileSizeBytes: 16 << 30,
		MonthlyPrice:     decimal.NewFromInt(599),
		YearlyPrice:      decimal.NewFromInt(5999),
		Features:         []string{"1 TB storage"},
		SortOrder:        7,
	}
}

func TestListActivePlans(t *testing.T) {
	repo := newStubPlanRepo()
	repo.activeRows = []models.StoragePlan{
		{ID: "free", SortOrder: 0},
		{ID: "lite", SortOrder: 1},
	}
	svc := newTestService(t, repo)

	rows, err := svc.ListActivePlans(context.Background())
	if err != nil {
		t.Fatalf("ListActivePlans failed: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "free" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestCreatePlanRejectsDuplicateID(t *testing.T) {
	repo := newStubPlanRepo()
	repo.plans["mega"] = &models.StoragePlan{ID: "mega"}
	svc := newTestService(t, repo)

	_, err := svc.CreatePlan(context.Background(), validInput())
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestCreatePlanValidation(t *testing.T) {
	svc := newTestService(t, newStubPlanRepo())

	cases := []struct {
		name  string
		mutid func(*PlanInput)
	}{
		{"bad slug", func(i *PlanInput) { i.ID = "Not A Slug!" }},
		{"empty name", func(i *PlanInput) { i.Name = "   " }},
		{"zero storage", func(i *PlanInput) { i.StorageBytes = 0 }},
		{"zero file cap", func(i *PlanInput) { i.MaxFileSizeBytes = 0 }},
		{"negative price", func(i *PlanInput) { i.MonthlyPrice = decimal.NewFromInt(-1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutid(&input)
			_, err := svc.CreatePlan(context.Background(), input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestCreatePlanDefaultsCurrency(t *testing.T) {
	repo := newStubPlanRepo()
	svc := newTestService(t, repo)

	created, err := svc.CreatePlan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	if created.CurrencyCode != "INR" {
		t.Fatalf("expected INR default, got %q", created.CurrencyCode)
	}
	if created.Status != enums.PlanStatusActive {
		t.Fatalf("expected active status, got %q", created.Status)
	}
}

func TestRetirePlan(t *testing.T) {
	repo := newStubPlanRepo()
	repo.plans["lite"] = &models.StoragePlan{ID: "lite", Status: enums.PlanStatusActive}
	svc := newTestService(t, repo)

	if err := svc.RetirePlan(context.Background(), "lite"); err != nil {
		t.Fatalf("RetirePlan failed: %v", err)
	}
	if repo.statusUpdates["lite"] != enums.PlanStatusRetired {
		t.Fatal("expected status update to retired")
	}

	// second retire is a no-op
	if err := svc.RetirePlan(context.Background(), "lite"); err != nil {
		t.Fatalf("second RetirePlan should be idempotent: %v", err)
	}
}

func TestRetirePlanProtectsDefault(t *testing.T) {
	repo := newStubPlanRepo()
	repo.plans["free"] = &models.StoragePlan{ID: "free", Status: enums.PlanStatusActive, IsDefault: true}
	svc := newTestService(t, repo)

	err := svc.RetirePlan(context.Background(), "free")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestDeletePlanBlockedByReferences(t *testing.T) {
	repo := newStubPlanRepo()
	repo.plans["pro"] = &models.StoragePlan{ID: "pro"}
	repo.refCount = 3
	svc := newTestService(t, repo)

	err := svc.DeletePlan(context.Background(), "pro")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if len(repo.deleted) != 0 {
		t.Fatal("plan must not be deleted while referenced")
	}
}

func TestDeletePlanUnreferenced(t *testing.T) {
	repo := newStubPlanRepo()
	repo.plans["pro"] = &models.StoragePlan{ID: "pro"}
	svc := newTestService(t, repo)

	if err := svc.DeletePlan(context.Background(), "pro"); err != nil {
		t.Fatalf("DeletePlan failed: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "pro" {
		t.Fatalf("expected delete of pro, got %v", repo.deleted)
	}
}

func TestGetPlanNotFound(t *testing.T) {
	svc := newTestService(t, newStubPlanRepo())
	_, err := svc.GetPlan(context.Background(), "ghost")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

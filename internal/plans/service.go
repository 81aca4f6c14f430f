package plans

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/clouddrivehq/clouddrive-backend/pkg/db/models"
	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
	pkgerrors "github.com/clouddrivehq/clouddrive-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type plansRepository interface {
	ListActive(ctx context.Context) ([]models.StoragePlan, error)
	FindByID(ctx context.Context, id string) (*models.StoragePlan, error)
	FindDefault(ctx context.Context) (*models.StoragePlan, error)
	Create(ctx context.Context, plan *models.StoragePlan) (*models.StoragePlan, error)
	Update(ctx context.Context, plan *models.StoragePlan) error
	UpdateStatus(ctx context.Context, id string, status enums.PlanStatus) error
	Delete(ctx context.Context, id string) error
	CountReferences(ctx context.Context, id string) (int64, error)
}

// Service exposes catalog reads plus the admin plan management surface.
type Service interface {
	ListActivePlans(ctx context.Context) ([]models.StoragePlan, error)
	GetPlan(ctx context.Context, id string) (*models.StoragePlan, error)
	GetDefaultPlan(ctx context.Context) (*models.StoragePlan, error)
	CreatePlan(ctx context.Context, input PlanInput) (*models.StoragePlan, error)
	UpdatePlan(ctx context.Context, id string, input PlanInput) (*models.StoragePlan, error)
	RetirePlan(ctx context.Context, id string) error
	DeletePlan(ctx context.Context, id string) error
}

// PlanInput holds the fields an admin supplies for a plan.
type PlanInput struct {
	ID               string
	Name             string
	StorageBytes     int64
	MaxFileSizeBytes int64
	MonthlyPrice     decimal.Decimal
	YearlyPrice      decimal.Decimal
	CurrencyCode     string
	Features         []string
	SortOrder        int
}

type service struct {
	repo plansRepository
}

var planIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,62}$`)

// NewService builds the plan catalog service.
func NewService(repo plansRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("plan repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListActivePlans(ctx context.Context) ([]models.StoragePlan, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	return rows, nil
}

func (s *service) GetPlan(ctx context.Context, id string) (*models.StoragePlan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plan")
	}
	return plan, nil
}

func (s *service) GetDefaultPlan(ctx context.Context) (*models.StoragePlan, error) {
	plan, err := s.repo.FindDefault(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no default plan configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup default plan")
	}
	return plan, nil
}

func (s *service) CreatePlan(ctx context.Context, input PlanInput) (*models.StoragePlan, error) {
	if err := validatePlanInput(input, true); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByID(ctx, input.ID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "plan id already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plan")
	}

	plan := &models.StoragePlan{
		ID:               input.ID,
		Name:             strings.TrimSpace(input.Name),
		Status:           enums.PlanStatusActive,
		StorageBytes:     input.StorageBytes,
		MaxFileSizeBytes: input.MaxFileSizeBytes,
		MonthlyPrice:     input.MonthlyPrice,
		YearlyPrice:      input.YearlyPrice,
		CurrencyCode:     currencyOrDefault(input.CurrencyCode),
		Features:         input.Features,
		SortOrder:        input.SortOrder,
	}

	created, err := s.repo.Create(ctx, plan)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create plan")
	}
	return created, nil
}

func (s *service) UpdatePlan(ctx context.Context, id string, input PlanInput) (*models.StoragePlan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	if err := validatePlanInput(input, false); err != nil {
		return nil, err
	}

	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plan")
	}

	plan.Name = strings.TrimSpace(input.Name)
	plan.StorageBytes = input.StorageBytes
	plan.MaxFileSizeBytes = input.MaxFileSizeBytes
	plan.MonthlyPrice = input.MonthlyPrice
	plan.YearlyPrice = input.YearlyPrice
	plan.CurrencyCode = currencyOrDefault(input.CurrencyCode)
	plan.Features = input.Features
	plan.SortOrder = input.SortOrder

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update plan")
	}
	return plan, nil
}

func (s *service) RetirePlan(ctx context.Context, id string) error {
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if plan.IsDefault {
		return pkgerrors.New(pkgerrors.CodeConflict, "default plan cannot be retired")
	}
	if plan.Status == enums.PlanStatusRetired {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, id, enums.PlanStatusRetired); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire plan")
	}
	return nil
}

func (s *service) DeletePlan(ctx context.Context, id string) error {
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if plan.IsDefault {
		return pkgerrors.New(pkgerrors.CodeConflict, "default plan cannot be deleted")
	}

	refs, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count plan references")
	}
	if refs > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "plan is referenced by subscriptions or payments; retire it instead")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete plan")
	}
	return nil
}

func validatePlanInput(input PlanInput, requireID bool) error {
	if requireID && !planIDPattern.MatchString(input.ID) {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan id must be a short lowercase slug")
	}
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.StorageBytes <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "storage_bytes must be positive")
	}
	if input.MaxFileSizeBytes <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_file_size_bytes must be positive")
	}
	if input.MonthlyPrice.IsNegative() || input.YearlyPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	}
	return nil
}

func currencyOrDefault(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "INR"
	}
	return code
}

package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clouddrivehq/clouddrive-backend/pkg/db/models"
	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
	pkgerrors "github.com/clouddrivehq/clouddrive-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type plansCatalog interface {
	GetPlan(ctx context.Context, id string) (*models.StoragePlan, error)
	GetDefaultPlan(ctx context.Context) (*models.StoragePlan, error)
}

// Service exposes subscription reads plus the plan swap applied on verified
// payments.
type Service interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetUsage(ctx context.Context, userID uuid.UUID) (*Usage, error)
	ApplyPlanUpgrade(ctx context.Context, tx *gorm.DB, userID uuid.UUID, planID string, cycle enums.BillingCycle, now time.Time) error
}

// Usage summarizes a user's quota position.
type Usage struct {
	PlanID           string             `json:"plan_id"`
	PlanName         string             `json:"plan_name"`
	BillingCycle     enums.BillingCycle `json:"billing_cycle"`
	StorageBytes     int64              `json:"storage_bytes"`
	StorageUsedBytes int64              `json:"storage_used_bytes"`
	ActivatedAt      time.Time          `json:"activated_at"`
}

type service struct {
	repo  Repository
	plans plansCatalog
}

// NewService builds the subscription service.
func NewService(repo Repository, plans plansCatalog) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if plans == nil {
		return nil, fmt.Errorf("plans catalog required")
	}
	return &service{repo: repo, plans: plans}, nil
}

// GetOrCreate returns the user's subscription, creating one on the default
// plan the first time the user shows up.
func (s *service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	sub, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}

	plan, err := s.plans.GetDefaultPlan(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &models.Subscription{
		UserID:       userID,
		PlanID:       plan.ID,
		BillingCycle: enums.BillingCycleMonthly,
		IsActive:     true,
		ActivatedAt:  time.Now().UTC(),
	})
	if err != nil {
		// a concurrent first request may have won the insert
		if existing, findErr := s.repo.FindByUserID(ctx, userID); findErr == nil {
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}
	created.Plan = plan
	return created, nil
}

func (s *service) GetUsage(ctx context.Context, userID uuid.UUID) (*Usage, error) {
	sub, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan := sub.Plan
	if plan == nil {
		plan, err = s.plans.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return nil, err
		}
	}

	return &Usage{
		PlanID:           plan.ID,
		PlanName:         plan.Name,
		BillingCycle:     sub.BillingCycle,
		StorageBytes:     plan.StorageBytes,
		StorageUsedBytes: sub.StorageUsedBytes,
		ActivatedAt:      sub.ActivatedAt,
	}, nil
}

// ApplyPlanUpgrade swaps the subscription's plan inside the caller's
// transaction. Usage is preserved; re-applying the same plan is a no-op so a
// verification replay cannot double-upgrade.
func (s *service) ApplyPlanUpgrade(ctx context.Context, tx *gorm.DB, userID uuid.UUID, planID string, cycle enums.BillingCycle, now time.Time) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if planID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	if !cycle.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid billing cycle")
	}

	repo := s.repo.WithTx(tx)

	sub, err := repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_, err = repo.Create(ctx, &models.Subscription{
				UserID:          userID,
				PlanID:          planID,
				BillingCycle:    cycle,
				IsActive:        true,
				LastPaymentDate: &now,
				ActivatedAt:     now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
			}
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}

	if sub.PlanID == planID && sub.BillingCycle == cycle {
		return nil
	}

	if err := repo.ReplacePlan(ctx, userID, planID, cycle, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace plan")
	}
	return nil
}

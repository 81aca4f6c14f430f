package plans

import (
	"context"

	"github.com/clouddrivehq/clouddrive-backend/pkg/db/models"
	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository exposes storage plan persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a plan repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListActive returns active plans in catalog order.
func (r *Repository) ListActive(ctx context.Context) ([]models.StoragePlan, error) {
	var rows []models.StoragePlan
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PlanStatusActive).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID loads a plan regardless of status.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.StoragePlan, error) {
	var row models.StoragePlan
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindDefault returns the plan flagged as the signup default.
func (r *Repository) FindDefault(ctx context.Context) (*models.StoragePlan, error) {
	var row models.StoragePlan
	if err := r.db.WithContext(ctx).First(&row, "is_default = ?", true).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts a new plan row.
func (r *Repository) Create(ctx context.Context, plan *models.StoragePlan) (*models.StoragePlan, error) {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return nil, err
	}
	return plan, nil
}

// Update persists the full plan row.
func (r *Repository) Update(ctx context.Context, plan *models.StoragePlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

// UpdateStatus flips the lifecycle status for the given plan.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status enums.PlanStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.StoragePlan{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the plan row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.StoragePlan{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountReferences reports how many subscriptions and payment intents point at
// the plan. Plans with references can be retired but never deleted.
func (r *Repository) CountReferences(ctx context.Context, id string) (int64, error) {
	var subs int64
	if err := r.db.WithContext(ctx).Model(&models.Subscription{}).Where("plan_id = ?", id).Count(&subs).Error; err != nil {
		return 0, err
	}
	var intents int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentIntent{}).Where("plan_id = ?", id).Count(&intents).Error; err != nil {
		return 0, err
	}
	return subs + intents, nil
}

package quota

import (
	"context"

	"github.com/clouddrivehq/clouddrive-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes the guarded usage counters on subscriptions.
type Repository interface {
	// Reserve atomically adds delta to the user's usage when the result stays
	// within limit. Returns false when the guard rejects the update.
	Reserve(ctx context.Context, userID uuid.UUID, delta, limit int64) (bool, error)
	// Release atomically subtracts delta when at least delta bytes are in use.
	// Returns false when the counter would go negative.
	Release(ctx context.Context, userID uuid.UUID, delta int64) (bool, error)
	// ClampToZero forces the usage counter to zero.
	ClampToZero(ctx context.Context, userID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a quota repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Reserve(ctx context.Context, userID uuid.UUID, delta, limit int64) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE subscriptions
		SET storage_used_bytes = storage_used_bytes + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND storage_used_bytes + ? <= ?
	`, delta, userID, delta, limit)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Release(ctx context.Context, userID uuid.UUID, delta int64) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE subscriptions
		SET storage_used_bytes = storage_used_bytes - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND storage_used_bytes >= ?
	`, delta, userID, delta)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ClampToZero(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Update("storage_used_bytes", 0).Error
}

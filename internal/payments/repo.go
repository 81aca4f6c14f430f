package payments

import (
	"context"
	"time"

	"github.com/clouddrivehq/clouddrive-backend/pkg/db/models"
	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
	"github.com/clouddrivehq/clouddrive-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for payment intents. Status moves
// go through UpdateStatusFrom so every transition is a guarded compare and
// swap on the current status.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.PaymentIntent, error)
	FindByReference(ctx context.Context, reference string) (*models.PaymentIntent, error)
	ListByUser(ctx context.Context, params listIntentsParams) ([]models.PaymentIntent, *pagination.Cursor, error)
	ListByStatus(ctx context.Context, status enums.PaymentStatus, limit int, cursor *pagination.Cursor) ([]models.PaymentIntent, *pagination.Cursor, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.PaymentIntent, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payment intents repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listIntentsParams struct {
	UserID uuid.UUID
	Status *enums.PaymentStatus
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("id = ?", id).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repositoryImpl) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("id = ? AND user_id = ?", id, userID).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindByReference resolves a bank UTR to its intent. References are unique
// across all intents, so at most one row matches.
func (r *repositoryImpl) FindByReference(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("external_reference = ?", reference).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repositoryImpl) ListByUser(ctx context.Context, params listIntentsParams) ([]models.PaymentIntent, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Preload("Plan").
		Where("user_id = ?", params.UserID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	return paginateIntents(query, params.Limit, params.Cursor)
}

func (r *repositoryImpl) ListByStatus(ctx context.Context, status enums.PaymentStatus, limit int, cursor *pagination.Cursor) ([]models.PaymentIntent, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Preload("Plan").
		Where("status = ?", status)
	return paginateIntents(query, limit, cursor)
}

func paginateIntents(query *gorm.DB, limit int, cursor *pagination.Cursor) ([]models.PaymentIntent, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var intents []models.PaymentIntent
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&intents).Error; err != nil {
		return nil, nil, err
	}

	if len(intents) > normalized {
		intents = intents[:normalized]
		last := intents[len(intents)-1]
		return intents, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return intents, nil, nil
}

func (r *repositoryImpl) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.PaymentStatusCreated, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

// UpdateStatusFrom moves the intent from one status to another only if it is
// still in the expected status. Extra column updates ride along in the same
// statement. Returns false when another writer got there first.
func (r *repositoryImpl) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for column, value := range updates {
		values[column] = value
	}

	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

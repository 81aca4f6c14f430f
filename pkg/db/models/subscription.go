package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
)

// Subscription persists the single active plan assignment per user.
type Subscription struct {
	ID               uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_subscriptions_user_id"`
	PlanID           string             `gorm:"column:plan_id;not null"`
	BillingCycle     enums.BillingCycle `gorm:"column:billing_cycle;type:billing_cycle;not null;default:'monthly'"`
	StorageUsedBytes int64              `gorm:"column:storage_used_bytes;not null;default:0"`
	IsActive         bool               `gorm:"column:is_active;not null;default:true"`
	LastPaymentDate  *time.Time         `gorm:"column:last_payment_date"`
	ActivatedAt      time.Time          `gorm:"column:activated_at;not null"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Plan *StoragePlan `gorm:"foreignKey:PlanID"`
}

package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
)

// StoragePlan captures the catalog metadata for a storage tier.
type StoragePlan struct {
	ID               string           `gorm:"column:id;primaryKey"`
	Name             string           `gorm:"column:name;not null"`
	Status           enums.PlanStatus `gorm:"column:status;type:plan_status;not null;default:'active'"`
	StorageBytes     int64            `gorm:"column:storage_bytes;not null"`
	MaxFileSizeBytes int64            `gorm:"column:max_file_size_bytes;not null"`
	MonthlyPrice     decimal.Decimal  `gorm:"column:monthly_price;type:numeric(12,2);not null"`
	YearlyPrice      decimal.Decimal  `gorm:"column:yearly_price;type:numeric(12,2);not null"`
	CurrencyCode     string           `gorm:"column:currency_code;not null;default:'INR'"`
	Features         pq.StringArray   `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	SortOrder        int              `gorm:"column:sort_order;not null;default:0"`
	IsDefault        bool             `gorm:"column:is_default;not null;default:false"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// PriceFor returns the plan price for the given billing cycle.
func (p StoragePlan) PriceFor(cycle enums.BillingCycle) decimal.Decimal {
	if cycle == enums.BillingCycleAnnual {
		return p.YearlyPrice
	}
	return p.MonthlyPrice
}

// IsFree reports whether the plan has no charge on either cycle.
func (p StoragePlan) IsFree() bool {
	return p.MonthlyPrice.IsZero() && p.YearlyPrice.IsZero()
}

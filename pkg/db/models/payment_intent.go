package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
)

// PaymentIntent tracks a user's attempt to pay for a plan upgrade over UPI.
// ExternalReference holds the bank UTR the payer submits; it is globally
// unique so the same transfer can never back two upgrades.
type PaymentIntent struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID            string                `gorm:"column:plan_id;not null"`
	BillingCycle      enums.BillingCycle    `gorm:"column:billing_cycle;type:billing_cycle;not null"`
	Amount            decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	CurrencyCode      string                `gorm:"column:currency_code;not null;default:'INR'"`
	Status            enums.PaymentStatus   `gorm:"column:status;type:payment_status;not null;default:'created'"`
	Channel           *enums.PaymentChannel `gorm:"column:channel;type:payment_channel"`
	ExternalReference *string               `gorm:"column:external_reference;uniqueIndex:uq_payment_intents_external_reference"`
	ProofURL          *string               `gorm:"column:proof_url"`
	PayeeVPA          string                `gorm:"column:payee_vpa;not null"`
	SubmitAttempts    int                   `gorm:"column:submit_attempts;not null;default:0"`
	FailureReason     *string               `gorm:"column:failure_reason"`
	ExpiresAt         time.Time             `gorm:"column:expires_at;not null"`
	SubmittedAt       *time.Time            `gorm:"column:submitted_at"`
	VerifiedAt        *time.Time            `gorm:"column:verified_at"`
	RejectedAt        *time.Time            `gorm:"column:rejected_at"`
	RefundedAt        *time.Time            `gorm:"column:refunded_at"`
	ResolvedBy        *uuid.UUID            `gorm:"column:resolved_by;type:uuid"`
	ResolutionNote    *string               `gorm:"column:resolution_note"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`

	Plan *StoragePlan `gorm:"foreignKey:PlanID"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/successplus/membership-backend/pkg/enums"
)

// Subscription persists provider subscription state per member, keyed by the
// provider's subscription id.
type Subscription struct {
	ID                     uuid.UUID                `gorm:"type:uuid;primaryKey"`
	MemberID               uuid.UUID                `gorm:"column:member_id;type:uuid;not null;index"`
	Provider               enums.Provider           `gorm:"column:provider;type:text;not null"`
	ProviderSubscriptionID string                   `gorm:"column:provider_subscription_id;not null;uniqueIndex"`
	ProviderCustomerID     *string                  `gorm:"column:provider_customer_id"`
	Status                 enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'INACTIVE'"`
	Tier                   string                   `gorm:"column:tier;not null;default:'FREE'"`
	BillingCycle           enums.BillingCycle       `gorm:"column:billing_cycle;type:text;not null;default:'monthly'"`
	CurrentPeriodStart     *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd       *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd      bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CanceledAt             *time.Time               `gorm:"column:canceled_at"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

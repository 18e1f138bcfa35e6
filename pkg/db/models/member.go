package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/successplus/membership-backend/pkg/enums"
)

// Member is the billing-side profile linked one-to-one with a User.
type Member struct {
	ID                     uuid.UUID              `gorm:"type:uuid;primaryKey"`
	Email                  string                 `gorm:"type:text;not null;uniqueIndex"`
	FirstName              string                 `gorm:"column:first_name;not null;default:''"`
	LastName               string                 `gorm:"column:last_name;not null;default:''"`
	MembershipTier         string                 `gorm:"column:membership_tier;not null;default:'Customer'"`
	MembershipStatus       enums.MembershipStatus `gorm:"column:membership_status;type:text;not null;default:'Inactive'"`
	TotalSpent             decimal.Decimal        `gorm:"column:total_spent;type:numeric(12,2);not null;default:0"`
	LifetimeValue          decimal.Decimal        `gorm:"column:lifetime_value;type:numeric(12,2);not null;default:0"`
	PaykickstartCustomerID *string                `gorm:"column:paykickstart_customer_id"`
	StripeCustomerID       *string                `gorm:"column:stripe_customer_id"`
	CreatedAt              time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Member) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the member flag grants the paykickstart fallback.
func (m *Member) IsActive() bool {
	return m != nil && m.MembershipStatus == enums.MembershipStatusActive
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/successplus/membership-backend/pkg/enums"
)

// ActivityLog is an append-only audit entry.
type ActivityLog struct {
	ID         uuid.UUID            `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Action     enums.ActivityAction `gorm:"column:action;type:text;not null"`
	EntityType string               `gorm:"column:entity_type;not null"`
	EntityID   string               `gorm:"column:entity_id;not null"`
	Details    json.RawMessage      `gorm:"column:details;type:jsonb"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (a *ActivityLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

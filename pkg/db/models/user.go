package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/successplus/membership-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Email        string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	FirstName    string         `gorm:"column:first_name;not null;default:''"`
	LastName     string         `gorm:"column:last_name;not null;default:''"`
	Role         enums.UserRole `gorm:"column:role;type:text;not null;default:'subscriber'"`
	MemberID     *uuid.UUID     `gorm:"column:member_id;type:uuid;uniqueIndex"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

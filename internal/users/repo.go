package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/successplus/membership-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByEmail retrieves the user matching the provided email, or nil, nil.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID, or nil, nil.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByMemberID returns the user linked to memberID, or nil, nil.
func (r *Repository) FindByMemberID(ctx context.Context, memberID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("member_id = ?", memberID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateIfAbsent inserts user unless the email is taken, then returns the
// stored row. A concurrent creator for the same email wins and its row is
// returned instead.
func (r *Repository) CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, error) {
	user.Email = NormalizeEmail(user.Email)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).
		Create(user).Error
	if err != nil {
		return nil, err
	}
	stored, err := r.FindByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return stored, nil
}

// LinkMember sets member_id when the user is not linked yet.
func (r *Repository) LinkMember(ctx context.Context, userID, memberID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND member_id IS NULL", userID).
		UpdateColumn("member_id", memberID).Error
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

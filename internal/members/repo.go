package members

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/successplus/membership-backend/pkg/db/models"
)

// Repository persists billing members.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID returns nil, nil when the member does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// CreateIfAbsent inserts member unless the email is taken and returns the
// stored row, which may belong to a concurrent creator.
func (r *Repository) CreateIfAbsent(ctx context.Context, member *models.Member) (*models.Member, error) {
	member.Email = strings.ToLower(strings.TrimSpace(member.Email))
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).
		Create(member).Error
	if err != nil {
		return nil, err
	}
	stored, err := r.FindByEmail(ctx, member.Email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return stored, nil
}

// Save writes every column of member.
func (r *Repository) Save(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

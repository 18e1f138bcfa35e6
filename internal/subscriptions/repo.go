package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/successplus/membership-backend/pkg/db/models"
	"github.com/successplus/membership-backend/pkg/enums"
)

// Repository handles subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
	InsertIfAbsent(ctx context.Context, subscription *models.Subscription) (bool, error)
	Update(ctx context.Context, subscription *models.Subscription) error
	ListEntitlingForMember(ctx context.Context, memberID uuid.UUID, now time.Time) ([]models.Subscription, error)
	NewestEntitlingByProvider(ctx context.Context, memberID uuid.UUID, provider enums.Provider) (*models.Subscription, error)
	CountEntitling(ctx context.Context, memberID uuid.UUID) (int64, error)
	ListLapsedDeferred(ctx context.Context, before time.Time, limit int) ([]models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByProviderID returns nil, nil when no row matches.
func (r *repository) FindByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("provider_subscription_id = ?", providerSubscriptionID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// InsertIfAbsent inserts the row unless one with the same provider id exists.
// It reports whether this call created the row; concurrent creators lose
// silently and fall through to an update.
func (r *repository) InsertIfAbsent(ctx context.Context, subscription *models.Subscription) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_subscription_id"}},
			DoNothing: true,
		}).
		Create(subscription)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Update(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

// ListEntitlingForMember returns ACTIVE/TRIALING rows whose period has not
// ended, newest period end first.
func (r *repository) ListEntitlingForMember(ctx context.Context, memberID uuid.UUID, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Where("status IN ?", enums.EntitlingSubscriptionStatuses).
		Where("current_period_end IS NOT NULL AND current_period_end > ?", now).
		Order("current_period_end DESC").
		Find(&subs).Error
	return subs, err
}

// NewestEntitlingByProvider returns the most recently touched ACTIVE/TRIALING
// row for the provider, or nil, nil.
func (r *repository) NewestEntitlingByProvider(ctx context.Context, memberID uuid.UUID, provider enums.Provider) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND provider = ?", memberID, provider).
		Where("status IN ?", enums.EntitlingSubscriptionStatuses).
		Order("updated_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) CountEntitling(ctx context.Context, memberID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("member_id = ?", memberID).
		Where("status IN ?", enums.EntitlingSubscriptionStatuses).
		Count(&count).Error
	return count, err
}

// ListLapsedDeferred returns entitling rows flagged cancel_at_period_end whose
// period ended before the cutoff, oldest first.
func (r *repository) ListLapsedDeferred(ctx context.Context, before time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.db.WithContext(ctx).
		Where("cancel_at_period_end = ?", true).
		Where("status IN ?", enums.EntitlingSubscriptionStatuses).
		Where("current_period_end IS NOT NULL AND current_period_end < ?", before).
		Order("current_period_end ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&subs).Error
	return subs, err
}

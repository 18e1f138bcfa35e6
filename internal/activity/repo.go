package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/successplus/membership-backend/pkg/db/models"
	"github.com/successplus/membership-backend/pkg/pagination"
)

// Repository appends audit entries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Page is one slice of a user's audit trail. NextCursor is empty on the last
// page.
type Page struct {
	Entries    []models.ActivityLog
	NextCursor string
}

func (r *Repository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListForUser returns a user's entries newest first, keyed on (created_at, id).
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return Page{}, err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.ActivityLog
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error; err != nil {
		return Page{}, err
	}

	page := Page{Entries: rows}
	if len(rows) > limit {
		page.Entries = rows[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

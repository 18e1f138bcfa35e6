// Package activity is the append-only audit trail of subscription transitions.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/successplus/membership-backend/pkg/db/models"
	"github.com/successplus/membership-backend/pkg/enums"
	"github.com/successplus/membership-backend/pkg/logger"
)

const EntityTypeSubscription = "subscription"

// Entry is one audited transition.
type Entry struct {
	UserID     uuid.UUID
	Action     enums.ActivityAction
	EntityType string
	EntityID   string
	Details    map[string]any
}

type store interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
}

// Publisher mirrors entries to a message bus.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error)
}

// Recorder writes entries best-effort: failures are logged, never returned.
type Recorder struct {
	store     store
	publisher Publisher
	logg      *logger.Logger
}

func NewRecorder(store store, publisher Publisher, logg *logger.Logger) *Recorder {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Recorder{store: store, publisher: publisher, logg: logg}
}

// Record persists entry and mirrors it when a publisher is configured.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.store == nil {
		return
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"action":    string(entry.Action),
		"entity_id": entry.EntityID,
		"user_id":   entry.UserID.String(),
	})

	details, err := json.Marshal(entry.Details)
	if err != nil {
		r.logg.Error(ctx, "encode activity details", err)
		details = nil
	}

	row := &models.ActivityLog{
		UserID:     entry.UserID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    details,
	}
	if err := r.store.Create(ctx, row); err != nil {
		r.logg.Error(ctx, "write activity log", err)
		return
	}

	r.mirror(ctx, row)
}

type mirroredEntry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (r *Recorder) mirror(ctx context.Context, row *models.ActivityLog) {
	if r.publisher == nil {
		return
	}
	payload, err := json.Marshal(mirroredEntry{
		ID:         row.ID.String(),
		UserID:     row.UserID.String(),
		Action:     string(row.Action),
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		Details:    row.Details,
		CreatedAt:  row.CreatedAt,
	})
	if err != nil {
		r.logg.Error(ctx, "encode activity mirror", err)
		return
	}
	msgID, err := r.publisher.Publish(ctx, payload, map[string]string{
		"action":      string(row.Action),
		"entity_type": row.EntityType,
		"entity_id":   row.EntityID,
	})
	if err != nil {
		r.logg.Error(ctx, "publish activity mirror", err)
		return
	}
	r.logg.Debug(ctx, fmt.Sprintf("activity mirrored as message %s", msgID))
}

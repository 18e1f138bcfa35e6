package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/successplus/membership-backend/api/responses"
	"github.com/successplus/membership-backend/api/validators"
	"github.com/successplus/membership-backend/internal/activity"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/pagination"
)

// ActivityLister reads a user's audit trail.
type ActivityLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (activity.Page, error)
}

type activityPage struct {
	Entries    []activityEntry `json:"entries"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type activityEntry struct {
	ID         uuid.UUID       `json:"id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AdminUserActivity pages through the audit entries for {userId}, newest
// first. Pass next_cursor back as ?cursor= for the following page.
func AdminUserActivity(repo ActivityLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity store unavailable"))
			return
		}

		userID, err := uuid.Parse(chi.URLParam(r, "userId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := r.URL.Query().Get("cursor")
		if _, err := pagination.ParseCursor(cursor); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		page, err := repo.ListForUser(r.Context(), userID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list activity"))
			return
		}

		out := activityPage{Entries: make([]activityEntry, 0, len(page.Entries)), NextCursor: page.NextCursor}
		for _, row := range page.Entries {
			out.Entries = append(out.Entries, activityEntry{
				ID:         row.ID,
				Action:     string(row.Action),
				EntityType: row.EntityType,
				EntityID:   row.EntityID,
				Details:    row.Details,
				CreatedAt:  row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

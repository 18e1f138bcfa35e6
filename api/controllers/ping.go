package controllers

import (
	"net/http"

	"github.com/successplus/membership-backend/api/middleware"
	"github.com/successplus/membership-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "public", "status": "ok"}
		if identity := middleware.IdentityFromContext(r.Context()); identity != nil {
			payload["user_id"] = identity.UserID.String()
		}
		responses.WriteSuccess(w, payload)
	}
}

package controllers

import (
	"net/http"

	"github.com/clouddrivehq/clouddrive-backend/api/responses"
	"github.com/clouddrivehq/clouddrive-backend/api/validators"
	"github.com/clouddrivehq/clouddrive-backend/internal/quota"
	"github.com/clouddrivehq/clouddrive-backend/pkg/logger"
)

type quotaRequest struct {
	SizeBytes int64 `json:"size_bytes" validate:"required,min=1"`
}

// SubscriptionUsage reports the caller's plan and storage position.
func SubscriptionUsage(svc quota.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		usage, err := svc.Usage(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, usage)
	}
}

// QuotaReserve admits an upload against the caller's storage limit.
func QuotaReserve(svc quota.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req quotaRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.CheckAndReserve(r.Context(), userID, req.SizeBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"reserved_bytes": req.SizeBytes})
	}
}

// QuotaRelease returns bytes to the caller's quota after a delete.
func QuotaRelease(svc quota.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req quotaRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Release(r.Context(), userID, req.SizeBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"released_bytes": req.SizeBytes})
	}
}

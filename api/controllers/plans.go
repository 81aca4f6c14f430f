package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clouddrivehq/clouddrive-backend/api/responses"
	"github.com/clouddrivehq/clouddrive-backend/internal/plans"
	"github.com/clouddrivehq/clouddrive-backend/pkg/enums"
	pkgerrors "github.com/clouddrivehq/clouddrive-backend/pkg/errors"
	"github.com/clouddrivehq/clouddrive-backend/pkg/logger"
)

// PlanList returns the purchasable catalog. Public, no auth.
func PlanList(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable"))
			return
		}
		catalog, err := svc.ListActivePlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"plans": catalog})
	}
}

// PlanDetail returns a single purchasable plan. Retired plans stay hidden
// from the public catalog.
func PlanDetail(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := svc.GetPlan(r.Context(), chi.URLParam(r, "planId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if plan.Status != enums.PlanStatusActive {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found"))
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

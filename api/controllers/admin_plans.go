package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/clouddrivehq/clouddrive-backend/api/responses"
	"github.com/clouddrivehq/clouddrive-backend/api/validators"
	"github.com/clouddrivehq/clouddrive-backend/internal/plans"
	pkgerrors "github.com/clouddrivehq/clouddrive-backend/pkg/errors"
	"github.com/clouddrivehq/clouddrive-backend/pkg/logger"
)

type planRequest struct {
	ID               string   `json:"id" validate:"required"`
	Name             string   `json:"name" validate:"required"`
	StorageBytes     int64    `json:"storage_bytes" validate:"required,min=1"`
	MaxFileSizeBytes int64    `json:"max_file_size_bytes" validate:"required,min=1"`
	MonthlyPrice     string   `json:"monthly_price"`
	YearlyPrice      string   `json:"yearly_price"`
	CurrencyCode     string   `json:"currency_code"`
	Features         []string `json:"features"`
	SortOrder        int      `json:"sort_order"`
}

func (p planRequest) toInput() (plans.PlanInput, error) {
	input := plans.PlanInput{
		ID:               p.ID,
		Name:             p.Name,
		StorageBytes:     p.StorageBytes,
		MaxFileSizeBytes: p.MaxFileSizeBytes,
		CurrencyCode:     p.CurrencyCode,
		Features:         p.Features,
		SortOrder:        p.SortOrder,
	}
	var err error
	if p.MonthlyPrice != "" {
		if input.MonthlyPrice, err = decimal.NewFromString(p.MonthlyPrice); err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid monthly price")
		}
	}
	if p.YearlyPrice != "" {
		if input.YearlyPrice, err = decimal.NewFromString(p.YearlyPrice); err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid yearly price")
		}
	}
	return input, nil
}

// AdminPlanCreate adds a plan to the catalog.
func AdminPlanCreate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := svc.CreatePlan(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, plan)
	}
}

// AdminPlanUpdate edits an existing plan in place.
func AdminPlanUpdate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planID := chi.URLParam(r, "planId")
		var req planRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := svc.UpdatePlan(r.Context(), planID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

// AdminPlanRetire pulls a plan from sale without touching existing subscribers.
func AdminPlanRetire(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planID := chi.URLParam(r, "planId")
		if err := svc.RetirePlan(r.Context(), planID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": planID, "status": "retired"})
	}
}

// AdminPlanDelete removes an unreferenced plan.
func AdminPlanDelete(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		planID := chi.URLParam(r, "planId")
		if err := svc.DeletePlan(r.Context(), planID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": planID, "status": "deleted"})
	}
}

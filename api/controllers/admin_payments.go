package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clouddrivehq/clouddrive-backend/api/responses"
	"github.com/clouddrivehq/clouddrive-backend/api/validators"
	"github.com/clouddrivehq/clouddrive-backend/internal/payments"
	pkgerrors "github.com/clouddrivehq/clouddrive-backend/pkg/errors"
	"github.com/clouddrivehq/clouddrive-backend/pkg/logger"
)

type resolvePaymentRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

type refundPaymentRequest struct {
	Note string `json:"note"`
}

// AdminPendingPayments lists the verification queue.
func AdminPendingPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = value
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		result, err := svc.ListPending(r.Context(), limit, cursor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminPaymentByReference traces a bank UTR to its payment intent.
func AdminPaymentByReference(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intent, err := svc.FindByReference(r.Context(), chi.URLParam(r, "reference"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// AdminResolvePayment approves or rejects a pending payment.
func AdminResolvePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intentID, err := pathUUID(chi.URLParam(r, "intentId"), "intent id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req resolvePaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intent, err := svc.ResolveVerification(r.Context(), adminID, intentID, payments.ResolveInput{
			Approve: req.Approve,
			Note:    req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// AdminRefundPayment marks a verified payment refunded.
func AdminRefundPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intentID, err := pathUUID(chi.URLParam(r, "intentId"), "intent id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req refundPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intent, err := svc.Refund(r.Context(), adminID, intentID, req.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

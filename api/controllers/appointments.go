package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidacare-health/vidacare-backend/api/responses"
	"github.com/vidacare-health/vidacare-backend/api/validators"
	"github.com/vidacare-health/vidacare-backend/internal/appointments"
	"github.com/vidacare-health/vidacare-backend/internal/payments"
	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/pagination"
)

type bookAppointmentRequest struct {
	CaregiverID uuid.UUID `json:"caregiver_id" validate:"required"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	Notes       *string   `json:"notes,omitempty"`
	Currency    string    `json:"currency,omitempty"`
}

// BookAppointment requests a visit priced from the caregiver's hourly rate.
func BookAppointment(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointments service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body bookAppointmentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appointment, err := svc.Book(r.Context(), actor, appointments.BookParams{
			CaregiverID: body.CaregiverID,
			StartsAt:    body.StartsAt,
			EndsAt:      body.EndsAt,
			Notes:       body.Notes,
			Currency:    enums.Currency(body.Currency),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, appointment)
	}
}

// GetAppointment returns one appointment the caller participates in.
func GetAppointment(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointments service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "appointmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appointment, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appointment)
	}
}

// ListAppointments pages through the caller's appointments, newest first.
func ListAppointments(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointments service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := appointments.ListParams{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
			parsed, err := enums.ParseAppointmentStatus(status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = parsed
		}

		list, err := svc.List(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type appointmentTransition func(svc appointments.Service, actor payments.Actor, r *http.Request, id uuid.UUID) (*models.Appointment, error)

func transitionHandler(svc appointments.Service, logg *logger.Logger, fn appointmentTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointments service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "appointmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appointment, err := fn(svc, actor, r, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appointment)
	}
}

// ConfirmAppointment lets the caregiver accept a requested visit.
func ConfirmAppointment(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(svc appointments.Service, actor payments.Actor, r *http.Request, id uuid.UUID) (*models.Appointment, error) {
		return svc.Confirm(r.Context(), actor, id)
	})
}

// StartAppointment marks a confirmed visit as in progress.
func StartAppointment(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(svc appointments.Service, actor payments.Actor, r *http.Request, id uuid.UUID) (*models.Appointment, error) {
		return svc.Start(r.Context(), actor, id)
	})
}

// CancelAppointment voids a requested or confirmed visit.
func CancelAppointment(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(svc appointments.Service, actor payments.Actor, r *http.Request, id uuid.UUID) (*models.Appointment, error) {
		return svc.Cancel(r.Context(), actor, id)
	})
}

// MarkAppointmentNoShow records that the client never arrived.
func MarkAppointmentNoShow(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(svc appointments.Service, actor payments.Actor, r *http.Request, id uuid.UUID) (*models.Appointment, error) {
		return svc.MarkNoShow(r.Context(), actor, id)
	})
}

type completeAppointmentRequest struct {
	PlatformFee decimal.Decimal `json:"platform_fee"`
	GatewayFee  decimal.Decimal `json:"gateway_fee"`
}

// CompleteAppointment finishes the visit and settles the care payment into
// the caregiver's wallet.
func CompleteAppointment(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "appointments service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "appointmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body completeAppointmentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		appointment, err := svc.Complete(r.Context(), actor, id, appointments.CompleteParams{
			PlatformFee: body.PlatformFee,
			GatewayFee:  body.GatewayFee,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, appointment)
	}
}

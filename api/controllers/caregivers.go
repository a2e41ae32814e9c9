package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vidacare-health/vidacare-backend/api/responses"
	"github.com/vidacare-health/vidacare-backend/api/validators"
	"github.com/vidacare-health/vidacare-backend/internal/caregivers"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/pagination"
)

type caregiverProfileRequest struct {
	Bio             *string         `json:"bio,omitempty"`
	Specialties     json.RawMessage `json:"specialties,omitempty"`
	HourlyRate      decimal.Decimal `json:"hourly_rate" validate:"required"`
	City            string          `json:"city" validate:"required"`
	State           string          `json:"state" validate:"required"`
	YearsExperience int             `json:"years_experience" validate:"min=0"`
}

// CreateCaregiverProfile publishes the caller's marketplace profile.
func CreateCaregiverProfile(svc caregivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "caregivers service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body caregiverProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.CreateProfile(r.Context(), actor, caregivers.ProfileParams{
			UserID:          actor.UserID,
			Bio:             body.Bio,
			Specialties:     body.Specialties,
			HourlyRate:      body.HourlyRate,
			City:            body.City,
			State:           body.State,
			YearsExperience: body.YearsExperience,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, profile)
	}
}

// GetCaregiverProfile returns one caregiver's public profile.
func GetCaregiverProfile(svc caregivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "caregivers service unavailable"))
			return
		}

		userID, err := parseIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.GetProfile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type updateCaregiverProfileRequest struct {
	Bio             *string          `json:"bio,omitempty"`
	Specialties     json.RawMessage  `json:"specialties,omitempty"`
	HourlyRate      *decimal.Decimal `json:"hourly_rate,omitempty"`
	City            *string          `json:"city,omitempty"`
	State           *string          `json:"state,omitempty"`
	YearsExperience *int             `json:"years_experience,omitempty"`
}

// UpdateCaregiverProfile mutates the caller's own profile (or any, as admin).
func UpdateCaregiverProfile(svc caregivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "caregivers service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := parseIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateCaregiverProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpdateProfile(r.Context(), actor, userID, caregivers.UpdateParams{
			Bio:             body.Bio,
			Specialties:     body.Specialties,
			HourlyRate:      body.HourlyRate,
			City:            body.City,
			State:           body.State,
			YearsExperience: body.YearsExperience,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type verifyCaregiverRequest struct {
	Verified bool `json:"verified"`
}

// VerifyCaregiver flips the admin verification flag on a profile.
func VerifyCaregiver(svc caregivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "caregivers service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := parseIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body verifyCaregiverRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.SetVerified(r.Context(), actor, userID, body.Verified)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// ListCaregivers searches published caregiver profiles.
func ListCaregivers(svc caregivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "caregivers service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		verifiedOnly, err := validators.ParseQueryBool(r, "verifiedOnly")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), caregivers.ListParams{
			City:         strings.TrimSpace(r.URL.Query().Get("city")),
			State:        strings.TrimSpace(r.URL.Query().Get("state")),
			VerifiedOnly: verifiedOnly,
			Limit:        limit,
			Cursor:       strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

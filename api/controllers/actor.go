package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vidacare-health/vidacare-backend/api/middleware"
	"github.com/vidacare-health/vidacare-backend/internal/payments"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
)

// requireActor builds the authorization subject from the authenticated
// request context.
func requireActor(r *http.Request) (payments.Actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return payments.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return payments.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return payments.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return payments.Actor{UserID: userID, Role: role}, nil
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidacare-health/vidacare-backend/api/responses"
	"github.com/vidacare-health/vidacare-backend/api/validators"
	"github.com/vidacare-health/vidacare-backend/api/views"
	"github.com/vidacare-health/vidacare-backend/internal/dashboard"
	"github.com/vidacare-health/vidacare-backend/internal/ledger"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
)

// AdminDashboard returns platform-wide aggregates.
func AdminDashboard(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		overview, err := svc.Overview(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

type ledgerAdjustRequest struct {
	UserID      uuid.UUID       `json:"user_id" validate:"required"`
	Currency    string          `json:"currency,omitempty"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	ReferenceID string          `json:"reference_id" validate:"required"`
	Description *string         `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// AdminLedgerAdjust applies a signed manual correction to a user wallet. The
// amount carries its own direction; a negative value debits the wallet.
func AdminLedgerAdjust(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var body ledgerAdjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Apply(r.Context(), ledger.ApplyParams{
			UserID:      body.UserID,
			Currency:    enums.Currency(body.Currency),
			Type:        enums.TransactionTypeAdjustment,
			Amount:      body.Amount,
			ReferenceID: body.ReferenceID,
			Description: body.Description,
			Metadata:    body.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, views.NewWalletTransactionView(*txn))
	}
}

package caregivers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidacare-health/vidacare-backend/internal/payments"
	dbpkg "github.com/vidacare-health/vidacare-backend/pkg/db"
	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/pagination"
)

// Service manages caregiver marketplace profiles.
type Service interface {
	CreateProfile(ctx context.Context, actor payments.Actor, params ProfileParams) (*models.CaregiverProfile, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.CaregiverProfile, error)
	UpdateProfile(ctx context.Context, actor payments.Actor, userID uuid.UUID, params UpdateParams) (*models.CaregiverProfile, error)
	SetVerified(ctx context.Context, actor payments.Actor, userID uuid.UUID, verified bool) (*models.CaregiverProfile, error)
	List(ctx context.Context, params ListParams) (*ProfileList, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// ProfileParams captures the inputs for a new caregiver profile.
type ProfileParams struct {
	UserID          uuid.UUID
	Bio             *string
	Specialties     json.RawMessage
	HourlyRate      decimal.Decimal
	City            string
	State           string
	YearsExperience int
}

// UpdateParams holds the mutable profile fields.
type UpdateParams struct {
	Bio             *string
	Specialties     json.RawMessage
	HourlyRate      *decimal.Decimal
	City            *string
	State           *string
	YearsExperience *int
}

// ListParams configures search over caregiver profiles.
type ListParams struct {
	City         string
	State        string
	VerifiedOnly bool
	Limit        int
	Cursor       string
}

// ProfileList wraps returned profiles and the cursor for the next page.
type ProfileList struct {
	Items  []models.CaregiverProfile `json:"items"`
	Cursor string                    `json:"cursor"`
}

// NewService wires caregiver profile dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "caregivers repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) CreateProfile(ctx context.Context, actor payments.Actor, params ProfileParams) (*models.CaregiverProfile, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if actor.Role != enums.UserRoleAdmin && actor.UserID != params.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "profile belongs to another user")
	}
	if actor.Role != enums.UserRoleAdmin && actor.Role != enums.UserRoleCaregiver {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only caregivers have profiles")
	}
	if !params.HourlyRate.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hourly rate must be positive")
	}
	city := strings.TrimSpace(params.City)
	state := strings.TrimSpace(params.State)
	if city == "" || state == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "city and state required")
	}
	if params.YearsExperience < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "years of experience must not be negative")
	}

	profile := &models.CaregiverProfile{
		UserID:          params.UserID,
		Bio:             params.Bio,
		Specialties:     params.Specialties,
		HourlyRate:      params.HourlyRate,
		City:            city,
		State:           state,
		YearsExperience: params.YearsExperience,
		RatingAverage:   decimal.Zero,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_caregiver_profiles_user_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "profile already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create profile")
	}

	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, params.UserID.String())
		s.logg.Info(logCtx, "caregiver profile created")
	}
	return profile, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*models.CaregiverProfile, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if err == ErrProfileNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "caregiver profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return profile, nil
}

func (s *service) UpdateProfile(ctx context.Context, actor payments.Actor, userID uuid.UUID, params UpdateParams) (*models.CaregiverProfile, error) {
	if actor.Role != enums.UserRoleAdmin && actor.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "profile belongs to another user")
	}
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if params.Bio != nil {
		profile.Bio = params.Bio
	}
	if params.Specialties != nil {
		profile.Specialties = params.Specialties
	}
	if params.HourlyRate != nil {
		if !params.HourlyRate.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "hourly rate must be positive")
		}
		profile.HourlyRate = *params.HourlyRate
	}
	if params.City != nil {
		city := strings.TrimSpace(*params.City)
		if city == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "city must not be empty")
		}
		profile.City = city
	}
	if params.State != nil {
		state := strings.TrimSpace(*params.State)
		if state == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "state must not be empty")
		}
		profile.State = state
	}
	if params.YearsExperience != nil {
		if *params.YearsExperience < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "years of experience must not be negative")
		}
		profile.YearsExperience = *params.YearsExperience
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return profile, nil
}

// SetVerified toggles the verification flag. Admin only.
func (s *service) SetVerified(ctx context.Context, actor payments.Actor, userID uuid.UUID, verified bool) (*models.CaregiverProfile, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins verify caregivers")
	}
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.Verified = verified
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return profile, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ProfileList, error) {
	query := listProfilesParams{
		City:         strings.TrimSpace(params.City),
		State:        strings.TrimSpace(params.State),
		VerifiedOnly: params.VerifiedOnly,
		Limit:        params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list profiles")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ProfileList{Items: rows, Cursor: cursor}, nil
}

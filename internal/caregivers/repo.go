package caregivers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/pagination"
)

// ErrProfileNotFound signals a lookup miss at the persistence layer.
var ErrProfileNotFound = errors.New("caregiver profile not found")

// Repository exposes persistence helpers for caregiver profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, profile *models.CaregiverProfile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CaregiverProfile, error)
	Update(ctx context.Context, profile *models.CaregiverProfile) error
	List(ctx context.Context, params listProfilesParams) ([]models.CaregiverProfile, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a caregivers repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listProfilesParams struct {
	City         string
	State        string
	VerifiedOnly bool
	Limit        int
	Cursor       *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, profile *models.CaregiverProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CaregiverProfile, error) {
	var profile models.CaregiverProfile
	err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) Update(ctx context.Context, profile *models.CaregiverProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *repositoryImpl) List(ctx context.Context, params listProfilesParams) ([]models.CaregiverProfile, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.CaregiverProfile{})
	if params.City != "" {
		query = query.Where("city = ?", params.City)
	}
	if params.State != "" {
		query = query.Where("state = ?", params.State)
	}
	if params.VerifiedOnly {
		query = query.Where("verified = ?", true)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.CaregiverProfile
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	"github.com/vidacare-health/vidacare-backend/pkg/pagination"
)

// ErrWalletNotFound signals a lookup miss at the persistence layer.
var ErrWalletNotFound = errors.New("wallet not found")

// Repository exposes persistence helpers for wallets and their ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetWalletByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	GetWalletForUser(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error)
	UpdateWalletBalances(ctx context.Context, wallet *models.Wallet, expectedVersion int64) (bool, error)
	FindTransactionByReference(ctx context.Context, walletID uuid.UUID, referenceID string) (*models.WalletTransaction, error)
	CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listTransactionsParams struct {
	WalletID uuid.UUID
	Type     enums.TransactionType
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repositoryImpl) GetWalletByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).First(&wallet, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repositoryImpl) GetWalletForUser(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		First(&wallet, "user_id = ? AND currency = ?", userID, currency).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// UpdateWalletBalances writes the balance buckets and counters guarded by the
// version column. It reports false when another writer won the race.
func (r *repositoryImpl) UpdateWalletBalances(ctx context.Context, wallet *models.Wallet, expectedVersion int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, expectedVersion).
		Updates(map[string]any{
			"balance":           wallet.Balance,
			"available_balance": wallet.AvailableBalance,
			"pending_balance":   wallet.PendingBalance,
			"reserved_balance":  wallet.ReservedBalance,
			"total_received":    wallet.TotalReceived,
			"total_sent":        wallet.TotalSent,
			"total_withdrawn":   wallet.TotalWithdrawn,
			"version":           expectedVersion + 1,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		wallet.Version = expectedVersion + 1
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindTransactionByReference(ctx context.Context, walletID uuid.UUID, referenceID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.WithContext(ctx).
		First(&txn, "wallet_id = ? AND reference_id = ?", walletID, referenceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repositoryImpl) CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repositoryImpl) ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("wallet_id = ?", params.WalletID)
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.WalletTransaction
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

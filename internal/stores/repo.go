package stores

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

// Repository handles store persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to store operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a store by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// FindOwnedBy loads a store only when ownerID owns it.
func (r *Repository) FindOwnedBy(ctx context.Context, id, ownerID uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// ListWithPaymentAccount returns every store that has a connected account reference.
func (r *Repository) ListWithPaymentAccount(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	if err := r.db.WithContext(ctx).
		Where("stripe_account_id IS NOT NULL AND stripe_account_id <> ''").
		Order("created_at ASC").
		Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

// SetPaymentAccount overwrites the connected account reference unconditionally.
// It reports the previous value and gorm.ErrRecordNotFound when the store is missing.
func (r *Repository) SetPaymentAccount(ctx context.Context, id uuid.UUID, accountID string) (previous *string, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var store models.Store
		if err := tx.Select("id", "stripe_account_id").Where("id = ?", id).First(&store).Error; err != nil {
			return err
		}
		previous = store.StripeAccountID
		return tx.Model(&models.Store{}).
			Where("id = ?", id).
			Update("stripe_account_id", accountID).Error
	})
	return previous, err
}

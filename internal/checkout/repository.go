package checkout

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

// SessionRepository maps processor session ids to the order and connected
// account that own them.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save records the index row. Re-saving an existing session id is a no-op.
func (r *SessionRepository) Save(ctx context.Context, row *models.CheckoutSession) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(row).Error
}

func (r *SessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	var row models.CheckoutSession
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

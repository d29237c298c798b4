package repository

import (
	"adwall/internal/models"

	"gorm.io/gorm"
)

// LedgerRepository reads the append-only transaction log. Writing entries is
// the billing service's job, inside the same DB transaction that mutates the
// balance; this repository never creates rows on its own.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) ListByUser(userID uint, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	var txs []models.Transaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Find(&txs).Error
	return txs, err
}

// SumByUser reconciles the ledger against the stored balance (audit use).
func (r *LedgerRepository) SumByUser(userID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.Transaction{}).Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount_cents),0)").Scan(&total).Error
	return total, err
}

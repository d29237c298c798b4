package models

import (
	"time"
)

// Transaction is an immutable ledger entry. Rows are created only as a side
// effect of a balance mutation, inside the same database transaction, so the
// sum of a user's entries reconciles with their balance.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"` // positive = credit, negative = debit
	Type        string    `gorm:"size:30;not null;index" json:"type"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Transaction) TableName() string { return "transactions" }

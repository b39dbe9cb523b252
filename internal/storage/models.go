package storage

import (
	"time"

	"github.com/google/uuid"
)

// Balance is one ledger row: the stored balance for an account name
// within a monetary domain. Amount is a decimal string so arithmetic
// stays exact regardless of driver numeric support.
type Balance struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"not null;uniqueIndex:idx_balances_name_domain"`
	Domain    string    `json:"domain" gorm:"not null;uniqueIndex:idx_balances_name_domain"`
	Amount    string    `json:"amount" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PoolBalance is the closed-economy server pool row for one domain.
type PoolBalance struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Domain    string    `json:"domain" gorm:"not null;uniqueIndex"`
	Amount    string    `json:"amount" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

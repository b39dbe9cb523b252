package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation kinds recorded in audit entries.
const (
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
)

// Entry is one committed balance change as seen by the audit layer.
type Entry struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Account   string    `json:"account" gorm:"not null;index"`
	Domain    string    `json:"domain" gorm:"not null"`
	Op        string    `json:"op" gorm:"not null"`
	Amount    float64   `json:"amount" gorm:"not null"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
}

// String renders the entry as a single history line.
func (e Entry) String() string {
	return fmt.Sprintf("%s %s %.2f account=%s domain=%s reason=%q",
		e.CreatedAt.UTC().Format(time.RFC3339), e.Op, e.Amount, e.Account, e.Domain, e.Reason)
}

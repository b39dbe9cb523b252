package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/econsim/economy/internal/economy"
)

// AccountAuditor is the distinguished single-slot auditor installed on
// an account via Account.SetAuditor. It keeps an in-memory history of
// the changes it observed, bounded to maxEntries, for later querying
// through Account.Auditor().
type AccountAuditor struct {
	logger *zap.Logger

	mu         sync.Mutex
	entries    []Entry
	maxEntries int
}

// NewAccountAuditor creates an auditor retaining up to maxEntries of
// history. maxEntries <= 0 selects a default of 512.
func NewAccountAuditor(logger *zap.Logger, maxEntries int) *AccountAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &AccountAuditor{logger: logger, maxEntries: maxEntries}
}

// Deposited records a committed deposit on the audited account.
func (a *AccountAuditor) Deposited(account *economy.Account, amount float64, reason string) {
	a.track(OpDeposit, account, amount, reason)
}

// Withdrew records a committed withdrawal on the audited account.
func (a *AccountAuditor) Withdrew(account *economy.Account, amount float64, reason string) {
	a.track(OpWithdraw, account, amount, reason)
}

func (a *AccountAuditor) track(op string, account *economy.Account, amount float64, reason string) {
	entry := Entry{
		ID:        uuid.New(),
		Account:   account.Name(),
		Domain:    account.Domain(),
		Op:        op,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now(),
	}

	a.mu.Lock()
	a.entries = append(a.entries, entry)
	if len(a.entries) > a.maxEntries {
		a.entries = a.entries[len(a.entries)-a.maxEntries:]
	}
	a.mu.Unlock()

	a.logger.Debug("auditor tracked balance change",
		zap.String("op", op),
		zap.String("account", entry.Account),
		zap.Float64("amount", amount),
		zap.String("reason", reason))
}

// AuditHistory returns up to limit formatted history lines, newest
// first. limit <= 0 means no limit.
func (a *AccountAuditor) AuditHistory(limit int) []string {
	entries := a.Entries(limit)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	return lines
}

// Entries returns up to limit tracked entries, newest first. limit <= 0
// means no limit.
func (a *AccountAuditor) Entries(limit int) []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(a.entries) - 1; i >= len(a.entries)-n; i-- {
		out = append(out, a.entries[i])
	}
	return out
}

package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/econsim/economy/internal/economy"
)

// Sink is the process-wide audit observer. A single Sink is handed to
// the economy registry at construction time and attached as the first
// observer of every account, so every committed balance change in the
// process lands in one central log regardless of how the account was
// created.
//
// Persistence is optional: with a nil db the sink is log-only. Observer
// callbacks must never fail the triggering transaction, so persistence
// errors are logged and swallowed here.
type Sink struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewSink creates the central audit sink. db may be nil for log-only
// operation; when set, the Entry schema is migrated on construction.
func NewSink(logger *zap.Logger, db *gorm.DB) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if db != nil {
		if err := db.AutoMigrate(&Entry{}); err != nil {
			return nil, fmt.Errorf("failed to migrate audit schema: %w", err)
		}
	}
	return &Sink{logger: logger, db: db}, nil
}

// Deposited records a committed deposit.
func (s *Sink) Deposited(account *economy.Account, amount float64, reason string) {
	s.record(OpDeposit, account, amount, reason)
}

// Withdrew records a committed withdrawal.
func (s *Sink) Withdrew(account *economy.Account, amount float64, reason string) {
	s.record(OpWithdraw, account, amount, reason)
}

func (s *Sink) record(op string, account *economy.Account, amount float64, reason string) {
	s.logger.Info("account balance changed",
		zap.String("op", op),
		zap.String("account", account.Name()),
		zap.String("domain", account.Domain()),
		zap.Float64("amount", amount),
		zap.String("reason", reason))

	if s.db == nil {
		return
	}
	entry := Entry{
		ID:        uuid.New(),
		Account:   account.Name(),
		Domain:    account.Domain(),
		Op:        op,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		// Audit persistence must not abort the committed transaction.
		s.logger.Error("failed to persist audit entry",
			zap.String("account", entry.Account), zap.Error(err))
	}
}

// History returns up to limit persisted entries for an account, newest
// first. limit <= 0 returns everything. A log-only sink has no history.
func (s *Sink) History(account string, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, nil
	}
	q := s.db.Where("account = ?", account).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}
	return entries, nil
}

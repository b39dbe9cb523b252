package storage

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/econsim/economy/internal/economy"
	"github.com/econsim/economy/pkg/metrics"
)

// Store is the gorm-backed balance backend. Every mutation runs in its
// own database transaction, which gives the per-call atomicity the
// economy core assumes; nothing here spans calls. Amounts are stored as
// decimal strings and mutated with decimal arithmetic to avoid float
// drift in long-lived ledgers.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	unit   string
}

// Open connects to the balance database. A postgres:// DSN selects the
// postgres driver; anything else is handed to the sqlite driver, so
// ":memory:" and file paths work for tests and single-node deployments.
func Open(dsn, unit string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if unit == "" {
		unit = "credits"
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open balance database: %w", err)
	}
	if err := db.AutoMigrate(&Balance{}, &PoolBalance{}); err != nil {
		return nil, fmt.Errorf("failed to migrate balance schema: %w", err)
	}

	return &Store{db: db, logger: logger, unit: unit}, nil
}

// DB exposes the underlying gorm handle so collaborators such as the
// audit sink can share the same database.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetBalance returns the stored balance for (name, domain). An account
// with no row yet reads as zero. Database faults surface wrapped in
// economy.ErrBackendUnavailable.
func (s *Store) GetBalance(name, domain string) (float64, error) {
	var row Balance
	err := s.db.Where("name = ? AND domain = ?", name, domain).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", economy.ErrBackendUnavailable, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt amount for %s/%s: %v", economy.ErrBackendUnavailable, name, domain, err)
	}
	f, _ := amount.Float64()
	return f, nil
}

// HasEnough reports whether the stored balance covers amount. Read
// failures count as not enough.
func (s *Store) HasEnough(name string, amount float64, domain string) bool {
	balance, err := s.GetBalance(name, domain)
	if err != nil {
		s.logger.Warn("balance read failed during hasEnough check",
			zap.String("name", name), zap.String("domain", domain), zap.Error(err))
		return false
	}
	return balance >= amount
}

// AddToBalance credits the stored balance, creating the ledger row on
// first touch. Negative and non-finite amounts are refused.
func (s *Store) AddToBalance(name string, amount float64, domain string) bool {
	delta, ok := mutationAmount(amount)
	if !ok {
		return false
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.applyDelta(tx, name, domain, delta)
	})
	if err != nil {
		s.logger.Error("balance credit failed",
			zap.String("name", name), zap.String("domain", domain),
			zap.Float64("amount", amount), zap.Error(err))
		return false
	}
	return true
}

// SubtractFromBalance debits the stored balance, refusing any mutation
// that would drive it negative.
func (s *Store) SubtractFromBalance(name string, amount float64, domain string) bool {
	delta, ok := mutationAmount(amount)
	if !ok {
		return false
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.applyDelta(tx, name, domain, delta.Neg())
	})
	if err != nil {
		if err != errWouldGoNegative {
			s.logger.Error("balance debit failed",
				zap.String("name", name), zap.String("domain", domain),
				zap.Float64("amount", amount), zap.Error(err))
		}
		return false
	}
	return true
}

var errWouldGoNegative = fmt.Errorf("storage: mutation would drive balance negative")

// applyDelta loads-or-creates the ledger row inside tx and applies a
// signed decimal delta, refusing results below zero.
func (s *Store) applyDelta(tx *gorm.DB, name, domain string, delta decimal.Decimal) error {
	var row Balance
	err := tx.Where("name = ? AND domain = ?", name, domain).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		row = Balance{
			ID:        uuid.New(),
			Name:      name,
			Domain:    domain,
			Amount:    decimal.Zero.String(),
			CreatedAt: time.Now(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	current, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return fmt.Errorf("corrupt amount for %s/%s: %w", name, domain, err)
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return errWouldGoNegative
	}
	row.Amount = next.String()
	row.UpdatedAt = time.Now()
	return tx.Save(&row).Error
}

// RemoveAccount erases the account's ledger rows across all domains.
func (s *Store) RemoveAccount(name string) error {
	if err := s.db.Where("name = ?", name).Delete(&Balance{}).Error; err != nil {
		return fmt.Errorf("%w: %v", economy.ErrBackendUnavailable, err)
	}
	return nil
}

// FormatBalance renders an amount with two decimal places and the
// configured currency unit.
func (s *Store) FormatBalance(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2) + " " + s.unit
}

// AddToServerPool credits the closed-economy pool for a domain.
func (s *Store) AddToServerPool(amount float64, domain string) bool {
	delta, ok := mutationAmount(amount)
	if !ok {
		return false
	}
	return s.mutatePool(domain, delta)
}

// SubtractFromServerPool debits the closed-economy pool for a domain,
// refusing a debit the pool cannot cover.
func (s *Store) SubtractFromServerPool(amount float64, domain string) bool {
	delta, ok := mutationAmount(amount)
	if !ok {
		return false
	}
	return s.mutatePool(domain, delta.Neg())
}

func (s *Store) mutatePool(domain string, delta decimal.Decimal) bool {
	var after decimal.Decimal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row PoolBalance
		err := tx.Where("domain = ?", domain).First(&row).Error
		if err == gorm.ErrRecordNotFound {
			row = PoolBalance{
				ID:        uuid.New(),
				Domain:    domain,
				Amount:    decimal.Zero.String(),
				CreatedAt: time.Now(),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		current, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return fmt.Errorf("corrupt pool amount for %s: %w", domain, err)
		}
		next := current.Add(delta)
		if next.IsNegative() {
			return errWouldGoNegative
		}
		row.Amount = next.String()
		row.UpdatedAt = time.Now()
		after = next
		return tx.Save(&row).Error
	})
	if err != nil {
		if err != errWouldGoNegative {
			s.logger.Error("server pool mutation failed",
				zap.String("domain", domain), zap.Error(err))
		}
		return false
	}
	f, _ := after.Float64()
	metrics.ServerPoolBalance.WithLabelValues(domain).Set(f)
	return true
}

// ServerPoolBalance returns the current pool balance for a domain. A
// domain with no pool row yet reads as zero.
func (s *Store) ServerPoolBalance(domain string) (float64, error) {
	var row PoolBalance
	err := s.db.Where("domain = ?", domain).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", economy.ErrBackendUnavailable, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt pool amount for %s: %v", economy.ErrBackendUnavailable, domain, err)
	}
	f, _ := amount.Float64()
	return f, nil
}

// SeedServerPool sets the pool for a domain to an absolute amount,
// creating the row if needed. Intended for bootstrap and tests.
func (s *Store) SeedServerPool(domain string, amount float64) error {
	target := decimal.NewFromFloat(amount)
	if target.IsNegative() {
		return fmt.Errorf("storage: pool seed must not be negative")
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row PoolBalance
		err := tx.Where("domain = ?", domain).First(&row).Error
		if err == gorm.ErrRecordNotFound {
			row = PoolBalance{
				ID:        uuid.New(),
				Domain:    domain,
				Amount:    target.String(),
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			return tx.Create(&row).Error
		}
		if err != nil {
			return err
		}
		row.Amount = target.String()
		row.UpdatedAt = time.Now()
		return tx.Save(&row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to seed server pool: %w", err)
	}
	metrics.ServerPoolBalance.WithLabelValues(domain).Set(amount)
	return nil
}

// mutationAmount validates and converts a mutation amount. Zero is
// allowed (a no-op mutation); negative and non-finite amounts are
// refused so callers cannot smuggle a debit through a credit path.
func mutationAmount(amount float64) (decimal.Decimal, bool) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(amount), true
}

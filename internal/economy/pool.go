package economy

import (
	"sync"

	"go.uber.org/zap"
)

// ServerPool is the shared, finite reserve a domain's currency flows
// through in closed economy mode. Deposits into player accounts draw
// from the pool; withdrawals return to it, so the sum of all account
// balances plus the pool stays constant for the domain.
//
// The pool counter itself is persisted by the backend; this type only
// serializes reconciliations for its domain so concurrent deposits and
// withdrawals cannot lose pool updates.
type ServerPool struct {
	mu      sync.Mutex
	domain  string
	backend Backend
	logger  *zap.Logger
}

func newServerPool(domain string, backend Backend, logger *zap.Logger) *ServerPool {
	return &ServerPool{
		domain:  domain,
		backend: backend,
		logger:  logger,
	}
}

// Domain returns the monetary domain this pool reconciles.
func (p *ServerPool) Domain() string {
	return p.domain
}

// PayToServer returns amount to the pool after a withdrawal from an
// account. It reports whether the backend accepted the pool credit.
func (p *ServerPool) PayToServer(amount float64, reason string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok := p.backend.AddToServerPool(amount, p.domain)
	if !ok {
		p.logger.Warn("server pool credit rejected",
			zap.String("domain", p.domain),
			zap.Float64("amount", amount),
			zap.String("reason", reason))
	}
	return ok
}

// PayFromServer draws amount out of the pool to cover a deposit into an
// account. It reports whether the backend accepted the pool debit; a
// false return means the pool could not cover the deposit.
func (p *ServerPool) PayFromServer(amount float64, reason string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok := p.backend.SubtractFromServerPool(amount, p.domain)
	if !ok {
		p.logger.Warn("server pool debit rejected",
			zap.String("domain", p.domain),
			zap.Float64("amount", amount),
			zap.String("reason", reason))
	}
	return ok
}

package economy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry wires accounts to their collaborators: the storage backend,
// the live configuration surface, the process-wide audit sink that every
// account reports to, and the per-domain server pools used in closed
// economy mode. Construction code holds one Registry and mints accounts
// from it; there is no package-level global.
type Registry struct {
	backend  Backend
	settings Settings
	sink     Observer
	logger   *zap.Logger

	mu            sync.Mutex
	defaultDomain string
	pools         map[string]*ServerPool
}

// NewRegistry creates a registry. sink is the global observer attached as
// the first observer of every account the registry creates; it must not
// be nil.
func NewRegistry(backend Backend, settings Settings, sink Observer, logger *zap.Logger) (*Registry, error) {
	if backend == nil {
		return nil, fmt.Errorf("economy: registry requires a backend")
	}
	if settings == nil {
		return nil, fmt.Errorf("economy: registry requires settings")
	}
	if sink == nil {
		return nil, fmt.Errorf("economy: registry requires a global audit sink")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		backend:  backend,
		settings: settings,
		sink:     sink,
		logger:   logger,
		pools:    make(map[string]*ServerPool),
	}, nil
}

// RegisterDomain makes a monetary domain known to the registry. The first
// registered domain becomes the default for accounts created without one.
func (r *Registry) RegisterDomain(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defaultDomain == "" {
		r.defaultDomain = domain
	}
	if _, ok := r.pools[domain]; !ok {
		r.pools[domain] = newServerPool(domain, r.backend, r.logger)
	}
}

// DefaultDomain returns the first registered domain, or "" when none has
// been registered yet.
func (r *Registry) DefaultDomain() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaultDomain
}

// Pool returns the shared server pool for a domain, creating it on first
// use. Reconciliation against the pool is serialized per domain by the
// pool's own mutex.
func (r *Registry) Pool(domain string) *ServerPool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[domain]
	if !ok {
		p = newServerPool(domain, r.backend, r.logger)
		r.pools[domain] = p
	}
	return p
}

// NewAccount creates an account in the default domain.
func (r *Registry) NewAccount(name string) *Account {
	return r.NewAccountIn(name, "")
}

// NewAccountIn creates an account scoped to the given monetary domain.
// An empty domain resolves to the registry default. The account's
// observer list starts with the registry's global sink, which cannot be
// removed for the lifetime of the account.
func (r *Registry) NewAccountIn(name, domain string) *Account {
	if domain == "" {
		domain = r.DefaultDomain()
	}
	a := &Account{
		reg:    r,
		name:   name,
		domain: domain,
	}
	a.holdings = backendHoldings{name: name, domain: domain, backend: r.backend}
	a.observers = []Observer{r.sink}
	return a
}

// NewAccountWithHoldings creates an account whose raw balance mutations
// are delegated to a caller-supplied Holdings implementation instead of
// the registry backend. Balance reads, pool reconciliation and account
// removal still go through the backend. This is the extension point for
// specialized account kinds.
func (r *Registry) NewAccountWithHoldings(name, domain string, h Holdings) *Account {
	a := r.NewAccountIn(name, domain)
	if h != nil {
		a.holdings = h
	}
	return a
}

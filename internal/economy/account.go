package economy

import (
	"sync"

	"go.uber.org/zap"

	"github.com/econsim/economy/pkg/metrics"
)

// Holdings is the raw balance-mutation primitive behind an account. Add
// and Subtract are pure mutations: they never notify observers and never
// touch the server pool, that layering belongs to Account. Subtract is
// expected to refuse a mutation that would go negative; the refusal is
// enforced by the backend, not here.
type Holdings interface {
	Add(amount float64) bool
	Subtract(amount float64) bool
}

// backendHoldings delegates raw mutations to the registry backend, keyed
// by account name and domain. It is the default Holdings for accounts.
type backendHoldings struct {
	name    string
	domain  string
	backend Backend
}

func (h backendHoldings) Add(amount float64) bool {
	return h.backend.AddToBalance(h.name, amount, h.domain)
}

func (h backendHoldings) Subtract(amount float64) bool {
	return h.backend.SubtractFromBalance(h.name, amount, h.domain)
}

// Account is a ledger entity with a persisted balance identified by name
// and monetary domain. It layers observer notification and closed
// economy reconciliation over the raw Holdings mutations, and is created
// through a Registry so every account reports to the process-wide audit
// sink.
//
// Individual backend mutations are atomic, but Account does not provide
// cross-call atomicity on its own: TransferTo and SetBalance take the
// accounts' transfer mutexes (in canonical order) for the duration of
// the call, which serializes those composite operations against each
// other. Plain Deposit and Withdraw calls remain best-effort
// single-mutation operations.
type Account struct {
	reg      *Registry
	name     string
	domain   string
	holdings Holdings

	// txMu serializes composite read-then-mutate operations
	// (TransferTo, SetBalance) touching this account.
	txMu sync.Mutex

	obsMu     sync.Mutex
	observers []Observer
	auditor   Auditor
}

// Name returns the unique account identifier.
func (a *Account) Name() string {
	return a.name
}

// Domain returns the monetary domain the account's balance lives in.
func (a *Account) Domain() string {
	return a.domain
}

// addMoney applies the raw credit primitive.
func (a *Account) addMoney(amount float64) bool {
	return a.holdings.Add(amount)
}

// subtractMoney applies the raw debit primitive.
func (a *Account) subtractMoney(amount float64) bool {
	return a.holdings.Subtract(amount)
}

// Deposit credits the account and notifies observers of the committed
// change. In closed economy mode the deposited amount is then drawn from
// the domain's server pool; if that reconciliation fails the deposit has
// already committed and been observed, but Deposit still reports false.
func (a *Account) Deposit(amount float64, reason string) bool {
	if !a.addMoney(amount) {
		metrics.Deposits.WithLabelValues(metrics.OutcomeRejected).Inc()
		return false
	}
	a.notifyDeposited(amount, reason)
	if a.reg.settings.ClosedEconomyEnabled() {
		if !a.reg.Pool(a.domain).PayFromServer(amount, reason) {
			a.reg.logger.Error("deposit committed but server pool reconciliation failed",
				zap.String("account", a.name),
				zap.String("domain", a.domain),
				zap.Float64("amount", amount),
				zap.String("reason", reason))
			metrics.Deposits.WithLabelValues(metrics.OutcomePoolFailed).Inc()
			return false
		}
	}
	metrics.Deposits.WithLabelValues(metrics.OutcomeAccepted).Inc()
	return true
}

// Withdraw debits the account and notifies observers of the committed
// change. In closed economy mode the withdrawn amount is then returned
// to the domain's server pool, with the same committed-but-reported-
// failed asymmetry as Deposit when the pool credit fails.
func (a *Account) Withdraw(amount float64, reason string) bool {
	if !a.subtractMoney(amount) {
		metrics.Withdrawals.WithLabelValues(metrics.OutcomeRejected).Inc()
		return false
	}
	a.notifyWithdrew(amount, reason)
	if a.reg.settings.ClosedEconomyEnabled() {
		if !a.reg.Pool(a.domain).PayToServer(amount, reason) {
			a.reg.logger.Error("withdrawal committed but server pool reconciliation failed",
				zap.String("account", a.name),
				zap.String("domain", a.domain),
				zap.Float64("amount", amount),
				zap.String("reason", reason))
			metrics.Withdrawals.WithLabelValues(metrics.OutcomePoolFailed).Inc()
			return false
		}
	}
	metrics.Withdrawals.WithLabelValues(metrics.OutcomeAccepted).Inc()
	return true
}

// TransferTo moves amount from this account to recipient. The balance
// pre-check is optimistic: it refuses an obvious overdraw without
// mutating anything, it is not a reservation. The transfer then runs as
// withdraw-from-source followed by deposit-to-recipient while holding
// both accounts' transfer mutexes in canonical order.
//
// If the deposit leg fails after the withdrawal committed, the amount
// has left the source and was never credited, the source of truth lost
// it. That case is logged and counted distinctly but not rolled back.
// The boolean result is false; the error is ErrInsufficientFunds for a
// refused overdraw and an *EconomyError for backend faults on the
// balance read.
func (a *Account) TransferTo(amount float64, recipient *Account, reason string) (bool, error) {
	if recipient == nil {
		return false, nil
	}
	a.lockPair(recipient)
	defer a.unlockPair(recipient)

	balance, err := a.HoldingBalance()
	if err != nil {
		return false, err
	}
	if amount > balance {
		return false, ErrInsufficientFunds
	}
	if !a.Withdraw(amount, reason) {
		return false, nil
	}
	if !recipient.Deposit(amount, reason) {
		a.reg.logger.Error("partial transfer loss: withdrawal committed, deposit failed",
			zap.String("from", a.name),
			zap.String("to", recipient.name),
			zap.String("domain", a.domain),
			zap.Float64("amount", amount),
			zap.String("reason", reason))
		metrics.TransferLosses.Inc()
		return false, nil
	}
	return true, nil
}

// lockPair takes both accounts' transfer mutexes ordered by (domain,
// name) so concurrent transfers over the same pair cannot deadlock.
func (a *Account) lockPair(b *Account) {
	if a == b {
		a.txMu.Lock()
		return
	}
	first, second := a, b
	if b.domain < a.domain || (b.domain == a.domain && b.name < a.name) {
		first, second = b, a
	}
	first.txMu.Lock()
	second.txMu.Lock()
}

func (a *Account) unlockPair(b *Account) {
	if a == b {
		a.txMu.Unlock()
		return
	}
	a.txMu.Unlock()
	b.txMu.Unlock()
}

// SetBalance adjusts the balance to target by routing the difference
// through Deposit or Withdraw, so observers and pool reconciliation see
// the adjustment like any other transaction. There is no backdoor
// mutation path. An already-matching balance is a no-op returning true.
func (a *Account) SetBalance(target float64, reason string) (bool, error) {
	a.txMu.Lock()
	defer a.txMu.Unlock()

	balance, err := a.HoldingBalance()
	if err != nil {
		return false, err
	}
	diff := target - balance
	switch {
	case diff > 0:
		return a.Deposit(diff, reason), nil
	case diff < 0:
		return a.Withdraw(-diff, reason), nil
	default:
		return true, nil
	}
}

// CanPayFromHoldings reports whether the stored balance covers amount.
// It never mutates and never notifies.
func (a *Account) CanPayFromHoldings(amount float64) bool {
	return a.reg.backend.HasEnough(a.name, amount, a.domain)
}

// HoldingBalance returns the current stored balance. Backend faults are
// surfaced as an *EconomyError rather than raw storage errors.
func (a *Account) HoldingBalance() (float64, error) {
	balance, err := a.reg.backend.GetBalance(a.name, a.domain)
	if err != nil {
		return 0, newEconomyError(a.name, a.domain, err)
	}
	return balance, nil
}

// FormattedBalance renders the current balance for presentation, or a
// fallback message when the balance cannot be read.
func (a *Account) FormattedBalance() string {
	balance, err := a.HoldingBalance()
	if err != nil {
		return "error accessing account balance"
	}
	return a.reg.backend.FormatBalance(balance)
}

// RemoveAccount asks the backend to erase this account's ledger rows.
// The in-memory object stays valid; further mutations on a removed
// account surface as ordinary backend refusals, never panics.
func (a *Account) RemoveAccount() error {
	return a.reg.backend.RemoveAccount(a.name)
}

// Observers returns a snapshot of the current observer list in
// registration order.
func (a *Account) Observers() []Observer {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	out := make([]Observer, len(a.observers))
	copy(out, a.observers)
	return out
}

// AddObserver registers an observer for committed balance changes.
// Registering an already-registered observer is a no-op, so the list
// never notifies the same observer twice per change.
func (a *Account) AddObserver(o Observer) {
	if o == nil {
		return
	}
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	for _, existing := range a.observers {
		if existing == o {
			return
		}
	}
	a.observers = append(a.observers, o)
}

// RemoveObserver unregisters an observer. Removing an absent observer is
// a no-op. The registry's global sink occupies the first slot and is not
// removable.
func (a *Account) RemoveObserver(o Observer) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	for i, existing := range a.observers {
		if existing == o {
			if i == 0 {
				// Global sink stays attached for the account's lifetime.
				return
			}
			a.observers = append(a.observers[:i], a.observers[i+1:]...)
			return
		}
	}
}

// Auditor returns the distinguished auditor tracking this account, or
// nil when none has been set.
func (a *Account) Auditor() Auditor {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	return a.auditor
}

// SetAuditor installs aud in the account's single auditor slot and
// registers it as a generic observer so it receives callbacks going
// forward. A previously set auditor keeps its place in the observer list
// until explicitly removed; only the slot is replaced.
func (a *Account) SetAuditor(aud Auditor) {
	a.obsMu.Lock()
	a.auditor = aud
	a.obsMu.Unlock()
	a.AddObserver(aud)
}

func (a *Account) notifyDeposited(amount float64, reason string) {
	for _, o := range a.Observers() {
		a.safeNotify(o, true, amount, reason)
	}
}

func (a *Account) notifyWithdrew(amount float64, reason string) {
	for _, o := range a.Observers() {
		a.safeNotify(o, false, amount, reason)
	}
}

// safeNotify invokes one observer callback, containing any panic so a
// misbehaving observer cannot abort the already-committed transaction.
func (a *Account) safeNotify(o Observer, deposit bool, amount float64, reason string) {
	defer func() {
		if r := recover(); r != nil {
			a.reg.logger.Error("account observer panicked",
				zap.String("account", a.name),
				zap.Any("panic", r))
		}
	}()
	if deposit {
		o.Deposited(a, amount, reason)
	} else {
		o.Withdrew(a, amount, reason)
	}
}

// Collect credits the account.
//
// Deprecated: use Deposit.
func (a *Account) Collect(amount float64, reason string) bool {
	return a.Deposit(amount, reason)
}

// Pay debits the account.
//
// Deprecated: use Withdraw.
func (a *Account) Pay(amount float64, reason string) bool {
	return a.Withdraw(amount, reason)
}

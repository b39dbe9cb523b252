package economy

// Backend is the balance-storage contract the economy core runs against.
// Implementations key every balance by account name and monetary domain
// and are expected to serialize mutations per account name, so that a
// single AddToBalance or SubtractFromBalance call is atomic. Nothing
// beyond per-call atomicity is assumed.
//
// SubtractFromBalance must refuse a mutation that would drive the stored
// balance negative and report the refusal by returning false.
type Backend interface {
	// GetBalance returns the stored balance for the account, or an error
	// when the backend is unreachable or misconfigured.
	GetBalance(name, domain string) (float64, error)

	// HasEnough reports whether the stored balance covers amount.
	HasEnough(name string, amount float64, domain string) bool

	// AddToBalance credits the stored balance and reports whether the
	// backend accepted the mutation.
	AddToBalance(name string, amount float64, domain string) bool

	// SubtractFromBalance debits the stored balance and reports whether
	// the backend accepted the mutation.
	SubtractFromBalance(name string, amount float64, domain string) bool

	// RemoveAccount erases the ledger rows for the account across all
	// domains.
	RemoveAccount(name string) error

	// FormatBalance renders an amount for presentation.
	FormatBalance(amount float64) string

	// AddToServerPool credits the shared server pool for a domain.
	AddToServerPool(amount float64, domain string) bool

	// SubtractFromServerPool debits the shared server pool for a domain.
	SubtractFromServerPool(amount float64, domain string) bool
}

// Settings is the configuration surface the core consumes. The closed
// economy flag is read on every deposit and withdrawal, never cached, so
// operators can toggle it on a live process.
type Settings interface {
	ClosedEconomyEnabled() bool
}

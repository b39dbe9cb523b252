package economy

import (
	"errors"
	"fmt"
)

// ErrInsufficientFunds marks a transfer attempted beyond the source
// account's current balance. No mutation occurs when it is reported.
var ErrInsufficientFunds = errors.New("economy: insufficient funds")

// ErrBackendUnavailable marks a balance read or write that failed because
// the storage backend is unreachable or misconfigured.
var ErrBackendUnavailable = errors.New("economy: backend unavailable")

// EconomyError wraps a backend fault with the account it hit, so callers
// get one domain error type instead of raw storage failures.
type EconomyError struct {
	Account string
	Domain  string
	Err     error
}

func (e *EconomyError) Error() string {
	return fmt.Sprintf("economy error for account %q in domain %q: %v", e.Account, e.Domain, e.Err)
}

func (e *EconomyError) Unwrap() error {
	return e.Err
}

func newEconomyError(account, domain string, err error) *EconomyError {
	return &EconomyError{Account: account, Domain: domain, Err: err}
}

package economy

// Observer receives notifications of committed balance changes. Callbacks
// run synchronously, in registration order, only after the backend
// mutation has been accepted; a rejected mutation fires nothing.
// Observers hold a back-reference to the account and no ownership of it.
type Observer interface {
	Deposited(account *Account, amount float64, reason string)
	Withdrew(account *Account, amount float64, reason string)
}

// Auditor is a distinguished observer that additionally tracks the
// history of the account it audits. Each account carries at most one
// auditor, settable via Account.SetAuditor and queryable via
// Account.Auditor.
type Auditor interface {
	Observer

	// AuditHistory returns up to limit formatted history lines for the
	// audited account, newest first. limit <= 0 means no limit.
	AuditHistory(limit int) []string
}

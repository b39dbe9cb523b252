package audit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/econsim/economy/internal/economy"
)

// memBackend is a minimal in-memory economy.Backend for driving real
// accounts through the audit layer.
type memBackend struct {
	balances map[string]float64
}

func newMemBackend() *memBackend {
	return &memBackend{balances: make(map[string]float64)}
}

func (b *memBackend) GetBalance(name, domain string) (float64, error) {
	return b.balances[name+"|"+domain], nil
}

func (b *memBackend) HasEnough(name string, amount float64, domain string) bool {
	return b.balances[name+"|"+domain] >= amount
}

func (b *memBackend) AddToBalance(name string, amount float64, domain string) bool {
	b.balances[name+"|"+domain] += amount
	return true
}

func (b *memBackend) SubtractFromBalance(name string, amount float64, domain string) bool {
	k := name + "|" + domain
	if b.balances[k] < amount {
		return false
	}
	b.balances[k] -= amount
	return true
}

func (b *memBackend) RemoveAccount(name string) error { return nil }

func (b *memBackend) FormatBalance(amount float64) string {
	return fmt.Sprintf("%.2f credits", amount)
}

func (b *memBackend) AddToServerPool(amount float64, domain string) bool { return true }

func (b *memBackend) SubtractFromServerPool(amount float64, domain string) bool { return true }

type openSettings struct{}

func (openSettings) ClosedEconomyEnabled() bool { return false }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func newAuditedRegistry(t *testing.T, sink *Sink) *economy.Registry {
	t.Helper()
	reg, err := economy.NewRegistry(newMemBackend(), openSettings{}, sink, nil)
	require.NoError(t, err)
	reg.RegisterDomain("overworld")
	return reg
}

func TestSinkPersistsCommittedChanges(t *testing.T) {
	sink, err := NewSink(nil, newTestDB(t))
	require.NoError(t, err)
	reg := newAuditedRegistry(t, sink)

	a := reg.NewAccount("alice")
	require.True(t, a.Deposit(100, "seed"))
	require.True(t, a.Withdraw(40, "spend"))

	entries, err := sink.History("alice", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, OpWithdraw, entries[0].Op)
	assert.Equal(t, 40.0, entries[0].Amount)
	assert.Equal(t, "spend", entries[0].Reason)
	assert.Equal(t, OpDeposit, entries[1].Op)
	assert.Equal(t, 100.0, entries[1].Amount)
	assert.Equal(t, "overworld", entries[1].Domain)
}

func TestSinkHistoryLimitAndIsolation(t *testing.T) {
	sink, err := NewSink(nil, newTestDB(t))
	require.NoError(t, err)
	reg := newAuditedRegistry(t, sink)

	a := reg.NewAccount("alice")
	b := reg.NewAccount("bob")
	for i := 0; i < 5; i++ {
		require.True(t, a.Deposit(1, "a"))
	}
	require.True(t, b.Deposit(1, "b"))

	entries, err := sink.History("alice", 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = sink.History("bob", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Account)
}

func TestLogOnlySinkHasNoHistory(t *testing.T) {
	sink, err := NewSink(nil, nil)
	require.NoError(t, err)
	reg := newAuditedRegistry(t, sink)

	a := reg.NewAccount("alice")
	require.True(t, a.Deposit(5, "seed"))

	entries, err := sink.History("alice", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAccountAuditorTracksHistory(t *testing.T) {
	sink, err := NewSink(nil, nil)
	require.NoError(t, err)
	reg := newAuditedRegistry(t, sink)

	a := reg.NewAccount("alice")
	auditor := NewAccountAuditor(nil, 0)
	a.SetAuditor(auditor)

	require.True(t, a.Deposit(100, "seed"))
	require.True(t, a.Withdraw(25, "spend"))

	entries := auditor.Entries(0)
	require.Len(t, entries, 2)
	assert.Equal(t, OpWithdraw, entries[0].Op)
	assert.Equal(t, OpDeposit, entries[1].Op)

	lines := auditor.AuditHistory(1)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "withdraw")
	assert.Contains(t, lines[0], "account=alice")
}

func TestAccountAuditorBoundsHistory(t *testing.T) {
	auditorIface := NewAccountAuditor(nil, 3)

	sink, err := NewSink(nil, nil)
	require.NoError(t, err)
	reg := newAuditedRegistry(t, sink)
	a := reg.NewAccount("alice")
	a.SetAuditor(auditorIface)

	for i := 1; i <= 5; i++ {
		require.True(t, a.Deposit(float64(i), "fill"))
	}

	entries := auditorIface.Entries(0)
	require.Len(t, entries, 3)
	// Oldest two were evicted; newest first.
	assert.Equal(t, 5.0, entries[0].Amount)
	assert.Equal(t, 4.0, entries[1].Amount)
	assert.Equal(t, 3.0, entries[2].Amount)
}

func TestAuditorSatisfiesEconomyAuditor(t *testing.T) {
	var _ economy.Auditor = NewAccountAuditor(nil, 0)
	var _ economy.Observer = &Sink{}
}

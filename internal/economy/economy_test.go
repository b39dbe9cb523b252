package economy

import (
	"fmt"
	"sync"
)

// fakeBackend is an in-memory Backend with switchable failure modes.
type fakeBackend struct {
	mu       sync.Mutex
	balances map[string]float64
	pools    map[string]float64

	failGet          bool
	rejectAdd        bool
	rejectAddFor     map[string]bool
	rejectSubtract   bool
	rejectPoolDebit  bool
	rejectPoolCredit bool

	removed []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		balances:     make(map[string]float64),
		pools:        make(map[string]float64),
		rejectAddFor: make(map[string]bool),
	}
}

func key(name, domain string) string {
	return name + "|" + domain
}

func (b *fakeBackend) GetBalance(name, domain string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failGet {
		return 0, fmt.Errorf("%w: connection refused", ErrBackendUnavailable)
	}
	return b.balances[key(name, domain)], nil
}

func (b *fakeBackend) HasEnough(name string, amount float64, domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[key(name, domain)] >= amount
}

func (b *fakeBackend) AddToBalance(name string, amount float64, domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectAdd || b.rejectAddFor[name] || amount < 0 {
		return false
	}
	b.balances[key(name, domain)] += amount
	return true
}

func (b *fakeBackend) SubtractFromBalance(name string, amount float64, domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectSubtract || amount < 0 {
		return false
	}
	k := key(name, domain)
	if b.balances[k] < amount {
		return false
	}
	b.balances[k] -= amount
	return true
}

func (b *fakeBackend) RemoveAccount(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.balances {
		if len(k) > len(name) && k[:len(name)] == name && k[len(name)] == '|' {
			delete(b.balances, k)
		}
	}
	b.removed = append(b.removed, name)
	return nil
}

func (b *fakeBackend) FormatBalance(amount float64) string {
	return fmt.Sprintf("%.2f credits", amount)
}

func (b *fakeBackend) AddToServerPool(amount float64, domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectPoolCredit {
		return false
	}
	b.pools[domain] += amount
	return true
}

func (b *fakeBackend) SubtractFromServerPool(amount float64, domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectPoolDebit {
		return false
	}
	if b.pools[domain] < amount {
		return false
	}
	b.pools[domain] -= amount
	return true
}

func (b *fakeBackend) pool(domain string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pools[domain]
}

func (b *fakeBackend) setBalance(name, domain string, amount float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[key(name, domain)] = amount
}

func (b *fakeBackend) setPool(domain string, amount float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pools[domain] = amount
}

// fakeSettings is a toggleable Settings implementation.
type fakeSettings struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSettings) ClosedEconomyEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSettings) setClosed(v bool) {
	s.mu.Lock()
	s.closed = v
	s.mu.Unlock()
}

// event is one observer callback as seen by a recorder.
type event struct {
	op      string
	account string
	amount  float64
	reason  string
}

// recorder is an Observer that remembers every callback, tagged with its
// own id so ordering across observers can be asserted.
type recorder struct {
	id string

	mu     sync.Mutex
	events []event
}

func newRecorder(id string) *recorder {
	return &recorder{id: id}
}

func (r *recorder) Deposited(account *Account, amount float64, reason string) {
	r.append(event{op: "deposit", account: account.Name(), amount: amount, reason: reason})
}

func (r *recorder) Withdrew(account *Account, amount float64, reason string) {
	r.append(event{op: "withdraw", account: account.Name(), amount: amount, reason: reason})
}

func (r *recorder) append(e event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event, len(r.events))
	copy(out, r.events)
	return out
}

// recordingAuditor is a recorder that satisfies Auditor.
type recordingAuditor struct {
	recorder
}

func newRecordingAuditor(id string) *recordingAuditor {
	return &recordingAuditor{recorder{id: id}}
}

func (a *recordingAuditor) AuditHistory(limit int) []string {
	events := a.all()
	if limit > 0 && limit < len(events) {
		events = events[len(events)-limit:]
	}
	lines := make([]string, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		lines = append(lines, fmt.Sprintf("%s %.2f %s", e.op, e.amount, e.reason))
	}
	return lines
}

// panicObserver always panics, for notification isolation tests.
type panicObserver struct{}

func (panicObserver) Deposited(*Account, float64, string) { panic("deposited observer boom") }

func (panicObserver) Withdrew(*Account, float64, string) { panic("withdrew observer boom") }

// sharedOrder appends "<id>:<op>" markers so cross-observer ordering is
// visible in one slice.
type sharedOrder struct {
	mu    sync.Mutex
	calls []string
}

func (s *sharedOrder) add(marker string) {
	s.mu.Lock()
	s.calls = append(s.calls, marker)
	s.mu.Unlock()
}

func (s *sharedOrder) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

type orderedObserver struct {
	id    string
	order *sharedOrder
}

func (o *orderedObserver) Deposited(_ *Account, _ float64, _ string) {
	o.order.add(o.id + ":deposit")
}

func (o *orderedObserver) Withdrew(_ *Account, _ float64, _ string) {
	o.order.add(o.id + ":withdraw")
}

// newTestRegistry wires a registry over fresh fakes with a recording
// global sink.
func newTestRegistry() (*Registry, *fakeBackend, *fakeSettings, *recorder) {
	backend := newFakeBackend()
	settings := &fakeSettings{}
	sink := newRecorder("sink")
	reg, err := NewRegistry(backend, settings, sink, nil)
	if err != nil {
		panic(err)
	}
	reg.RegisterDomain("overworld")
	return reg, backend, settings, sink
}

// Package lock implements the provider-wide reader/writer lock of spec
// §4.6: every data-plane operation (including migration, which reads and
// writes through the registry but never changes which databases are
// attached) takes the read side, while attach/remove/remove_all — the
// operations that change the registry's membership — take the write
// side. This lets concurrent puts/gets proceed in parallel with each
// other while guaranteeing no data-plane call observes a database
// mid-attach or mid-removal.
package lock

import (
	"sync"

	"github.com/kvfabric/kvfabric/pkg/metrics"
)

// ProviderLock is a thin, named wrapper around sync.RWMutex so call sites
// read as "what this operation is" rather than "which side of a mutex".
type ProviderLock struct {
	mu sync.RWMutex
}

// New creates an unlocked ProviderLock.
func New() *ProviderLock { return &ProviderLock{} }

// RLock acquires the data-plane (read) side: put, get, length, exists,
// erase, the listing ops, and every migration operation.
func (l *ProviderLock) RLock() {
	timer := metrics.NewTimer()
	l.mu.RLock()
	timer.ObserveDurationVec(metrics.LockWaitDuration, "read")
}
func (l *ProviderLock) RUnlock() { l.mu.RUnlock() }

// Lock acquires the membership (write) side: attach, remove, remove_all.
func (l *ProviderLock) Lock() {
	timer := metrics.NewTimer()
	l.mu.Lock()
	timer.ObserveDurationVec(metrics.LockWaitDuration, "write")
}
func (l *ProviderLock) Unlock() { l.mu.Unlock() }

// WithRLock runs fn holding the read side and returns its error.
func (l *ProviderLock) WithRLock(fn func() error) error {
	l.RLock()
	defer l.RUnlock()
	return fn()
}

// WithLock runs fn holding the write side and returns its error.
func (l *ProviderLock) WithLock(fn func() error) error {
	l.Lock()
	defer l.Unlock()
	return fn()
}

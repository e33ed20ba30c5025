// Package arbiter grants exclusive access to the single physical NFC reader.
// Every logical operation that wants to issue a blocking read must hold the
// arbiter first; there is no other legal path to the hardware.
package arbiter

import (
	"sync"

	"go.uber.org/zap"
)

// Arbiter is a two-state ownership token: free, or held by a named owner.
// Acquisition never blocks. A caller that finds the reader held backs off
// and retries on its own schedule.
type Arbiter struct {
	mu     sync.Mutex
	holder string
	cancel func()
}

func New() *Arbiter {
	return &Arbiter{}
}

// TryAcquire claims the reader for owner. It fails if any owner, including
// the caller, already holds it.
func (a *Arbiter) TryAcquire(owner string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder != "" {
		zap.L().Debug("Reader busy",
			zap.String("wanted_by", owner),
			zap.String("held_by", a.holder))
		return false
	}

	a.holder = owner
	a.cancel = nil
	return true
}

// Release returns the reader to the free state. Only the current holder may
// release; anything else indicates a bookkeeping bug and is refused.
func (a *Arbiter) Release(owner string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder != owner {
		zap.L().Warn("Release refused, caller is not the holder",
			zap.String("caller", owner),
			zap.String("held_by", a.holder))
		return false
	}

	a.holder = ""
	a.cancel = nil
	return true
}

// Holder reports who currently holds the reader, "" when free.
func (a *Arbiter) Holder() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder
}

// HeldBy reports whether owner currently holds the reader. Operations call
// this both before and after a blocking read: a read may have been in flight
// when another operation raced in, and its result must then be discarded.
func (a *Arbiter) HeldBy(owner string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder == owner
}

// WatchCancel registers the cancellation hook for the holder's in-flight
// blocking read. Cancel invokes it.
func (a *Arbiter) WatchCancel(owner string, cancel func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder != owner {
		return false
	}

	a.cancel = cancel
	return true
}

// Cancel forces the in-flight blocking read, if any, to return early. It
// does not release the arbiter: the owner whose read was cancelled is still
// the holder and is responsible for releasing.
func (a *Arbiter) Cancel() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

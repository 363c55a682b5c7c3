// Package mutexbroker is the cross-process mutex broker (M): three
// named, system-wide mutexes serialise concurrent access to the SMBus
// host controller, the PCODE/MRC "BIOS mailbox" and the OC/SVID mailbox,
// the same three hardware mailboxes firmware and other vendor tools
// reach for concurrently. Resources are acquired in the fixed order
// SMBus -> PCODE mailbox -> OC mailbox (spec.md §5); callers never hold
// two at once for an operation that needs only one.
package mutexbroker

import (
	"log"
	"os"
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

var Logger = log.New(os.Stderr, "imcsnap/mutexbroker: ", log.LstdFlags)

// Resource names one of the three hardware-shared mailboxes/controllers.
type Resource int

const (
	SMBus Resource = iota
	PCODEMailbox
	OCMailbox
)

func (r Resource) mutexName() string {
	switch r {
	case SMBus:
		return "imcsnap_smbus_mutex"
	case PCODEMailbox:
		return "imcsnap_pcode_mailbox_mutex"
	case OCMailbox:
		return "imcsnap_oc_mailbox_mutex"
	default:
		return "imcsnap_unknown_mutex"
	}
}

// namedMutex is satisfied by the Windows implementation in
// mutex_windows.go; tests use an in-process fake.
type namedMutex interface {
	Acquire(wait time.Duration) (bool, error)
	Release() error
	Close() error
}

// Broker owns the three named mutexes. It is the HardwareContext-owned
// resource spec.md §9 calls for in place of global mutable singletons:
// callers construct one Broker and pass it down instead of touching
// process-wide statics.
type Broker struct {
	mutexes map[Resource]namedMutex
}

// New creates (or opens, if another process already has) the three
// named mutexes, trying the Local\ namespace first and falling back to
// Global\ so that multiple sessions/UIDs coordinate correctly, per
// spec.md §4.2.
func New() (*Broker, error) {
	b := &Broker{mutexes: make(map[Resource]namedMutex)}

	for _, r := range []Resource{SMBus, PCODEMailbox, OCMailbox} {
		m, err := openNamedMutex(r.mutexName())
		if err != nil {
			return nil, hwerr.Wrap(hwerr.KindMutexUnavailable, r.mutexName(), err)
		}

		b.mutexes[r] = m
	}

	return b, nil
}

// Close releases all three mutex handles. Safe to call once.
func (b *Broker) Close() error {
	var firstErr error

	for _, m := range b.mutexes {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// WithLock acquires resource for at most wait, runs fn while holding it,
// and always releases -- including when fn panics or returns an error
// -- before returning. Release is idempotent: fn may not double-release
// via a nested WithLock on the same resource (that would deadlock, by
// design, since these are non-reentrant OS mutexes).
func (b *Broker) WithLock(resource Resource, wait time.Duration, fn func() error) error {
	m, ok := b.mutexes[resource]
	if !ok {
		return hwerr.New(hwerr.KindMutexUnavailable, resource.mutexName())
	}

	acquired, err := m.Acquire(wait)
	if err != nil {
		return hwerr.Wrap(hwerr.KindMutexUnavailable, resource.mutexName(), err)
	}

	if !acquired {
		return hwerr.New(hwerr.KindAcquireTimeout, resource.mutexName())
	}

	defer func() {
		if relErr := m.Release(); relErr != nil {
			Logger.Printf("release %s: %v", resource.mutexName(), relErr)
		}
	}()

	return fn()
}

// SMBusHandshake models the firmware/OS INUSE arbitration layered on
// top of the SMBus OS mutex (spec.md §4.2/§5): after the OS mutex is
// held, wait up to inUseTimeout for the host controller's INUSE bit to
// clear, write an unlock value, run fn, then restore the prior value on
// the way out regardless of fn's outcome.
type SMBusHandshake struct {
	// WaitClear polls the INUSE bit until clear or timeout elapses.
	WaitClear func(timeout time.Duration) error
	// Unlock writes the unlock value and returns the prior register
	// state so it can be restored.
	Unlock func() (prior byte, err error)
	// Restore writes prior back on the way out.
	Restore func(prior byte) error
}

// WithSMBusLock composes the OS mutex with the INUSE handshake. It is a
// method on Broker (not smbus) because the mutex ordering and scoping
// guarantees of spec.md §5 belong to M; smbus only supplies the
// register-level callbacks.
func (b *Broker) WithSMBusLock(wait, inUseTimeout time.Duration, hs SMBusHandshake, fn func() error) error {
	return b.WithLock(SMBus, wait, func() error {
		if err := hs.WaitClear(inUseTimeout); err != nil {
			return hwerr.Wrap(hwerr.KindInUseTimeout, "smbus inuse", err)
		}

		prior, err := hs.Unlock()
		if err != nil {
			return err
		}

		defer func() {
			if err := hs.Restore(prior); err != nil {
				Logger.Printf("restore smbus inuse state: %v", err)
			}
		}()

		return fn()
	})
}

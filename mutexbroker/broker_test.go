package mutexbroker

import (
	"errors"
	"testing"
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

type fakeMutex struct {
	acquireResult bool
	acquireErr    error
	released      int
	closed        bool
}

func (f *fakeMutex) Acquire(wait time.Duration) (bool, error) {
	return f.acquireResult, f.acquireErr
}

func (f *fakeMutex) Release() error {
	f.released++

	return nil
}

func (f *fakeMutex) Close() error {
	f.closed = true

	return nil
}

func newTestBroker(m *fakeMutex) *Broker {
	return &Broker{mutexes: map[Resource]namedMutex{SMBus: m}}
}

func TestWithLockReleasesOnSuccess(t *testing.T) {
	t.Parallel()

	m := &fakeMutex{acquireResult: true}
	b := newTestBroker(m)

	ran := false
	if err := b.WithLock(SMBus, time.Second, func() error {
		ran = true

		return nil
	}); err != nil {
		t.Fatalf("WithLock: %v", err)
	}

	if !ran {
		t.Fatal("fn was not called")
	}

	if m.released != 1 {
		t.Fatalf("released %d times, want 1", m.released)
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	t.Parallel()

	m := &fakeMutex{acquireResult: true}
	b := newTestBroker(m)

	wantErr := errors.New("boom")

	err := b.WithLock(SMBus, time.Second, func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	if m.released != 1 {
		t.Fatalf("released %d times, want 1", m.released)
	}
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	t.Parallel()

	m := &fakeMutex{acquireResult: true}
	b := newTestBroker(m)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic to propagate")
		}

		if m.released != 1 {
			t.Fatalf("released %d times, want 1", m.released)
		}
	}()

	_ = b.WithLock(SMBus, time.Second, func() error {
		panic("boom")
	})
}

func TestWithLockAcquireTimeout(t *testing.T) {
	t.Parallel()

	m := &fakeMutex{acquireResult: false}
	b := newTestBroker(m)

	err := b.WithLock(SMBus, time.Millisecond, func() error {
		t.Fatal("fn should not run when acquire times out")

		return nil
	})

	if !hwerr.Is(err, hwerr.KindAcquireTimeout) {
		t.Fatalf("err = %v, want AcquireTimeout", err)
	}
}

func TestWithSMBusLockRestoresOnError(t *testing.T) {
	t.Parallel()

	m := &fakeMutex{acquireResult: true}
	b := newTestBroker(m)

	var restored byte

	hs := SMBusHandshake{
		WaitClear: func(time.Duration) error { return nil },
		Unlock:    func() (byte, error) { return 0x42, nil },
		Restore: func(prior byte) error {
			restored = prior

			return nil
		},
	}

	err := b.WithSMBusLock(time.Second, time.Millisecond, hs, func() error {
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error to propagate")
	}

	if restored != 0x42 {
		t.Fatalf("restored = 0x%X, want 0x42", restored)
	}
}

//go:build windows

package mutexbroker

import (
	"time"

	"golang.org/x/sys/windows"
)

type windowsMutex struct {
	handle windows.Handle
	held   bool
}

// openNamedMutex creates-or-opens a Local\ named mutex, falling back to
// Global\ on failure (e.g. insufficient privilege to create an object
// in the Local\ namespace of another session), per spec.md §4.2/§5.
func openNamedMutex(name string) (namedMutex, error) {
	h, err := windows.CreateMutex(nil, false, strPtr(`Local\`+name))
	if err != nil {
		h, err = windows.CreateMutex(nil, false, strPtr(`Global\`+name))
		if err != nil {
			return nil, err
		}
	}

	return &windowsMutex{handle: h}, nil
}

func strPtr(s string) *uint16 {
	p, err := windows.UTF16PtrFromString(s)
	if err != nil {
		panic(err) // programmer error: name is always ASCII
	}

	return p
}

func (m *windowsMutex) Acquire(wait time.Duration) (bool, error) {
	ms := uint32(wait.Milliseconds())

	ev, err := windows.WaitForSingleObject(m.handle, ms)
	if err != nil {
		return false, err
	}

	switch ev {
	case windows.WAIT_OBJECT_0, windows.WAIT_ABANDONED:
		m.held = true

		return true, nil
	case uint32(windows.WAIT_TIMEOUT):
		return false, nil
	default:
		return false, err
	}
}

func (m *windowsMutex) Release() error {
	if !m.held {
		return nil
	}

	m.held = false

	return windows.ReleaseMutex(m.handle)
}

func (m *windowsMutex) Close() error {
	return windows.CloseHandle(m.handle)
}

//go:build windows

package kdrv

import (
	"golang.org/x/sys/windows"
)

// windowsTransport issues DeviceIoControl against a handle opened with
// CreateFile, the Win32 device path named in spec.md §6.
type windowsTransport struct {
	handle windows.Handle
}

func openWindowsTransport(path string) (rawTransport, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}

	h, err := windows.CreateFile(p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0)
	if err != nil {
		return nil, err
	}

	return &windowsTransport{handle: h}, nil
}

func (t *windowsTransport) Ioctl(code uint32, in []byte, outLen int) ([]byte, error) {
	var out []byte
	if outLen > 0 {
		out = make([]byte, outLen)
	}

	var bytesReturned uint32

	var inPtr *byte
	if len(in) > 0 {
		inPtr = &in[0]
	}

	var outPtr *byte
	if len(out) > 0 {
		outPtr = &out[0]
	}

	err := windows.DeviceIoControl(t.handle, code, inPtr, uint32(len(in)), outPtr, uint32(len(out)), &bytesReturned, nil)
	if err != nil {
		return nil, err
	}

	if int(bytesReturned) < len(out) {
		out = out[:bytesReturned]
	}

	return out, nil
}

func (t *windowsTransport) Close() error {
	return windows.CloseHandle(t.handle)
}

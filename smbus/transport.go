package smbus

import (
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

// Transport is the strategy interface spec.md §9 calls for in place of
// an "if method == 0" fork: one SMBus controller picks an implementation
// at construction time and every higher-level driver (SPD5, PMIC,
// thermal) talks only to this interface.
type Transport interface {
	ReadByte(dev, cmd uint8) (uint8, error)
	WriteByte(dev, cmd, value uint8) error
	ProcCall(dev, cmd uint8, value uint16) (uint16, error)
	// KillAndClear issues the bus-recovery path: a KILL command followed
	// by clearing the status register, used when a transaction stalls.
	KillAndClear() error
}

// portIO is implemented by *kdrv.Device; declared locally so this
// package only depends on the two operations it actually needs and
// can be unit tested against a fake.
type portIO interface {
	PortRead(port uint16, size int) (uint32, error)
	PortWrite(port uint16, size int, value uint32) error
}

// smartIO is implemented by *kdrv.Device's Method-A smart ioctls.
type smartIO interface {
	SMBusReadByte(port uint16, dev, cmd uint8) (uint8, bool, error)
	SMBusWriteByte(port uint16, dev, cmd, value uint8) (bool, error)
	SMBusProcCall(port uint16, dev, cmd uint8, value uint16) (uint16, bool, error)
}

// NewTransport probes whether the driver supports Method A (smart
// ioctls) and falls back to Method B (raw i801 port sequencing) when it
// does not, per spec.md §4.4.
func NewTransport(io portIO, smart smartIO, basePort uint16, waitIntr time.Duration) Transport {
	if smart != nil {
		if _, ok, err := smart.SMBusReadByte(basePort, 0, 0); err == nil && ok {
			return &methodA{smart: smart, basePort: basePort}
		}
	}

	return &methodB{io: io, basePort: basePort, waitIntr: waitIntr}
}

// methodA delegates every transaction to the driver's smart ioctls.
type methodA struct {
	smart    smartIO
	basePort uint16
}

func (m *methodA) ReadByte(dev, cmd uint8) (uint8, error) {
	v, ok, err := m.smart.SMBusReadByte(m.basePort, dev, cmd)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, hwerr.New(hwerr.KindUnsupported, "smbus method A read_byte")
	}

	return v, nil
}

func (m *methodA) WriteByte(dev, cmd, value uint8) error {
	ok, err := m.smart.SMBusWriteByte(m.basePort, dev, cmd, value)
	if err != nil {
		return err
	}

	if !ok {
		return hwerr.New(hwerr.KindUnsupported, "smbus method A write_byte")
	}

	return nil
}

func (m *methodA) ProcCall(dev, cmd uint8, value uint16) (uint16, error) {
	v, ok, err := m.smart.SMBusProcCall(m.basePort, dev, cmd, value)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, hwerr.New(hwerr.KindUnsupported, "smbus method A proc_call")
	}

	return v, nil
}

// KillAndClear is a no-op under Method A: the driver's smart ioctl owns
// recovery internally.
func (m *methodA) KillAndClear() error { return nil }

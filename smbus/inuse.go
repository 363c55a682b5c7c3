package smbus

import (
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

// INUSE arbitration (spec.md §4.2/§5): the cross‑OS/firmware handshake
// layered on top of the SMBus OS mutex. It is exported here as three
// small primitives rather than one function so the mutex broker (M) can
// compose them into its WithSMBusLock without S importing M.

// WaitInUseClear polls HSTSTS until the INUSE bit clears or timeout
// elapses.
func (c *Controller) WaitInUseClear(io portIO, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		v, err := io.PortRead(c.BasePort+regHstSts, 1)
		if err != nil {
			return err
		}

		if uint8(v)&stsInUse == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return hwerr.New(hwerr.KindInUseTimeout, "smbus INUSE never cleared")
		}

		time.Sleep(time.Millisecond)
	}
}

// UnlockInUse claims the controller by writing HSTSTS back with INUSE
// cleared, returning the prior register value so the caller can restore
// it on release.
func (c *Controller) UnlockInUse(io portIO) (prior byte, err error) {
	v, err := io.PortRead(c.BasePort+regHstSts, 1)
	if err != nil {
		return 0, err
	}

	prior = byte(v)

	if err := io.PortWrite(c.BasePort+regHstSts, 1, uint32(prior&^stsInUse)); err != nil {
		return 0, err
	}

	return prior, nil
}

// RestoreInUse writes prior back on release.
func (c *Controller) RestoreInUse(io portIO, prior byte) error {
	return io.PortWrite(c.BasePort+regHstSts, 1, uint32(prior))
}

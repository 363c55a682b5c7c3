package snapshot

import (
	"github.com/kramelec/imcsnap/kdrv"
	"github.com/kramelec/imcsnap/mutexbroker"
)

// HardwareContext owns the driver handle and the three named mutexes,
// borrowed by S/X/P for the lifetime of one or many refreshes. This
// replaces the "open driver handle / acquired mailbox mutex / active
// slot" process-wide statics spec.md §9 calls out: one context, passed
// explicitly, instead.
type HardwareContext struct {
	Dev    *kdrv.Device
	Broker *mutexbroker.Broker
}

// NewHardwareContext opens the kernel helper and the mutex broker.
// Either failing is fatal per spec.md §7 (DriverUnavailable /
// MutexUnavailable): there is no partial HardwareContext.
func NewHardwareContext(driverPath string) (*HardwareContext, error) {
	dev, err := kdrv.NewDevice(driverPath)
	if err != nil {
		return nil, err
	}

	broker, err := mutexbroker.New()
	if err != nil {
		_ = dev.Close()

		return nil, err
	}

	return &HardwareContext{Dev: dev, Broker: broker}, nil
}

// Close releases the mutex broker and the driver handle.
func (hc *HardwareContext) Close() error {
	if err := hc.Broker.Close(); err != nil {
		Logger.Printf("close mutex broker: %v", err)
	}

	return hc.Dev.Close()
}

package smbus

import (
	"encoding/binary"
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

// pciConfig is implemented by *kdrv.Device.
type pciConfig interface {
	PCIConfigRead(bus, dev, fun uint8, offset uint16, size int) ([]byte, error)
}

const (
	intelVendorID = 0x8086
	classSerial   = 0x0C
	subclassSMBus = 0x05

	pciOffsetClassCode = 0x0A // revision(1) + class/subclass/progif(3), class+subclass at 0x0A..0x0B
	pciOffsetVendorID  = 0x00
	pciOffsetDeviceID  = 0x02
	pciOffsetSMBBase   = 0x20 // i801 SMBus base address register
	pciOffsetHostCfg   = 0x40 // HOSTC: host configuration (IOSE, I2C_EN)
)

const (
	hostcIOSE   = 0x01
	hostcI2CEn  = 0x04
	ioBARIOFlag = 0x01
)

// knownSMBusDeviceIDs lists the Intel client-PCH SMBus controller DIDs
// this walker recognises across the 600/700-series chipsets backing
// the 12th-15th generation platforms named in spec.md §1.
var knownSMBusDeviceIDs = map[uint16]bool{
	0x7AA3: true, // 600-series (Alder Lake PCH)
	0x7A23: true, // 700-series (Raptor/Meteor Lake PCH)
	0x5AA3: true, // mobile variants
	0x51A3: true, // 800-series (Arrow Lake PCH)
}

// Controller describes a discovered SMBus host controller ready for use.
type Controller struct {
	Bus, Dev, Fun uint8
	BasePort      uint16
	Transport     Transport
}

// Discover walks PCI buses {0x00, 0x80} across every device/function, per
// spec.md §4.4, returning the first validated Intel SMBus host
// controller it finds.
func Discover(cfg pciConfig, io portIO, smart smartIO, waitIntr time.Duration) (*Controller, error) {
	for _, bus := range [2]uint8{0x00, 0x80} {
		for dev := uint8(0); dev < 32; dev++ {
			for fun := uint8(0); fun < 8; fun++ {
				ctrl, ok, err := probeFunction(cfg, io, smart, bus, dev, fun, waitIntr)
				if err != nil {
					Logger.Printf("probe %02x:%02x.%x: %v", bus, dev, fun, err)

					continue
				}

				if ok {
					return ctrl, nil
				}
			}
		}
	}

	return nil, hwerr.New(hwerr.KindUnsupported, "no Intel SMBus host controller found")
}

func probeFunction(cfg pciConfig, io portIO, smart smartIO, bus, dev, fun uint8, waitIntr time.Duration) (*Controller, bool, error) {
	hdr, err := cfg.PCIConfigRead(bus, dev, fun, 0, 0x10)
	if err != nil || len(hdr) < 0x10 {
		return nil, false, nil //nolint:nilerr // absent function, not a probe failure
	}

	vendorID := binary.LittleEndian.Uint16(hdr[pciOffsetVendorID:])
	if vendorID == 0xFFFF || vendorID != intelVendorID {
		return nil, false, nil
	}

	deviceID := binary.LittleEndian.Uint16(hdr[pciOffsetDeviceID:])

	class, err := cfg.PCIConfigRead(bus, dev, fun, 0x08, 4)
	if err != nil || len(class) < 4 {
		return nil, false, nil //nolint:nilerr
	}

	subclass, baseClass := class[2], class[3]
	if baseClass != classSerial || subclass != subclassSMBus {
		return nil, false, nil
	}

	if !knownSMBusDeviceIDs[deviceID] {
		return nil, false, nil
	}

	hostc, err := cfg.PCIConfigRead(bus, dev, fun, pciOffsetHostCfg, 1)
	if err != nil || len(hostc) != 1 {
		return nil, false, err
	}

	if hostc[0]&hostcIOSE == 0 {
		return nil, false, nil
	}

	if hostc[0]&hostcI2CEn != 0 {
		return nil, false, nil
	}

	barBytes, err := cfg.PCIConfigRead(bus, dev, fun, pciOffsetSMBBase, 4)
	if err != nil || len(barBytes) != 4 {
		return nil, false, err
	}

	bar := binary.LittleEndian.Uint32(barBytes)
	if bar&ioBARIOFlag == 0 {
		return nil, false, nil // not an I/O-space BAR
	}

	basePort := uint16(bar &^ 0x3)
	if basePort == 0 {
		return nil, false, nil
	}

	transport := NewTransport(io, smart, basePort, waitIntr)

	// Harmless probe read: HSTSTS is safe to read without side effects
	// and confirms the port actually answers before we accept it.
	if _, err := io.PortRead(basePort+regHstSts, 1); err != nil {
		return nil, false, err
	}

	return &Controller{Bus: bus, Dev: dev, Fun: fun, BasePort: basePort, Transport: transport}, true, nil
}

package mailbox

import (
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

// mmioAccess is implemented by *kdrv.Device: the "MMIO read/write via a
// PCI base address" primitive spec.md §4.1 names for K.
type mmioAccess interface {
	PhyMemPCRead64(bus, dev, fun uint8, baseCfgOffset uint16, addrMask uint64, addrOffset uint64) (uint64, error)
	PhyMemPCWrite32(bus, dev, fun uint8, baseCfgOffset uint16, addrMask uint64, addrOffset uint64, value uint32) error
}

// MCHBARCarrier reaches the PCODE/MRC mailbox through the two adjacent
// MCHBAR DWORDs spec.md §4.6 names: data at +0x5DA0, interface/status at
// +0x5DA4. Because the offsets are adjacent, one 64-bit read returns
// both: data in the low DWORD, interface/status in the high DWORD.
type MCHBARCarrier struct {
	Dev                   mmioAccess
	Bus, PCIDev, Fun      uint8
	BaseCfgOffset         uint16 // 0x48 for MCHBAR on the platforms in scope
	AddrMask              uint64
	DataOffset, CmdOffset uint64
}

// NewMCHBARCarrier returns a carrier bound to PCI 0:0.0's MCHBAR BAR.
func NewMCHBARCarrier(dev mmioAccess, dataOffset, cmdOffset uint64) *MCHBARCarrier {
	return &MCHBARCarrier{
		Dev:           dev,
		Bus:           0,
		PCIDev:        0,
		Fun:           0,
		BaseCfgOffset: 0x48,
		AddrMask:      ^uint64(0x7FFF), // MCHBAR is 32KB aligned
		DataOffset:    dataOffset,
		CmdOffset:     cmdOffset,
	}
}

func (c *MCHBARCarrier) Exchange(cmdWord uint32, dataValue uint32, timeout time.Duration) (uint32, uint32, error) {
	if err := c.Dev.PhyMemPCWrite32(c.Bus, c.PCIDev, c.Fun, c.BaseCfgOffset, c.AddrMask, c.DataOffset, dataValue); err != nil {
		return 0, 0, err
	}

	if err := c.Dev.PhyMemPCWrite32(c.Bus, c.PCIDev, c.Fun, c.BaseCfgOffset, c.AddrMask, c.CmdOffset, cmdWord); err != nil {
		return 0, 0, err
	}

	deadline := time.Now().Add(timeout)

	for {
		combined, err := c.Dev.PhyMemPCRead64(c.Bus, c.PCIDev, c.Fun, c.BaseCfgOffset, c.AddrMask, c.DataOffset)
		if err != nil {
			return 0, 0, err
		}

		response := uint32(combined)
		status := uint32(combined >> 32)

		if status&runBusyBit == 0 {
			return response, status &^ runBusyBit, nil
		}

		if time.Now().After(deadline) {
			return 0, 0, hwerr.New(hwerr.KindTimeout, "mailbox RunBusy did not clear")
		}

		time.Sleep(time.Millisecond)
	}
}

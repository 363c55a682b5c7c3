package mailbox

import (
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

// msrAccess is implemented by *kdrv.Device.
type msrAccess interface {
	MSRRead(reg uint32) (hi uint32, lo uint32, err error)
	MSRWrite(reg uint32, hi uint32, lo uint32) error
}

// MSRCarrier reaches a mailbox carried over one or two MSRs. The
// PCODE-over-MSR mailbox (spec.md §4.6) uses two registers: data at
// 0x608, command/status at 0x607. The OC mailbox collapses both into a
// single MSR (0x150): data in the low 32 bits, command/status in the
// high 32 bits of the same register -- set Combined and point both
// DataReg and CmdReg at 0x150.
type MSRCarrier struct {
	Dev      msrAccess
	DataReg  uint32
	CmdReg   uint32
	Combined bool
}

// NewPCODEMSRCarrier returns the two-register PCODE/BIOS mailbox carrier.
func NewPCODEMSRCarrier(dev msrAccess) *MSRCarrier {
	return &MSRCarrier{Dev: dev, DataReg: 0x608, CmdReg: 0x607}
}

// NewOCMSRCarrier returns the single-register OC/SVID mailbox carrier.
func NewOCMSRCarrier(dev msrAccess) *MSRCarrier {
	return &MSRCarrier{Dev: dev, DataReg: 0x150, CmdReg: 0x150, Combined: true}
}

func (c *MSRCarrier) Exchange(cmdWord uint32, dataValue uint32, timeout time.Duration) (uint32, uint32, error) {
	if c.Combined {
		if err := c.Dev.MSRWrite(c.DataReg, cmdWord, dataValue); err != nil {
			return 0, 0, err
		}
	} else {
		if err := c.Dev.MSRWrite(c.DataReg, 0, dataValue); err != nil {
			return 0, 0, err
		}

		if err := c.Dev.MSRWrite(c.CmdReg, 0, cmdWord); err != nil {
			return 0, 0, err
		}
	}

	deadline := time.Now().Add(timeout)

	for {
		var statusWord uint32

		var response uint32

		if c.Combined {
			hi, lo, err := c.Dev.MSRRead(c.DataReg)
			if err != nil {
				return 0, 0, err
			}

			statusWord, response = hi, lo
		} else {
			_, cmdLo, err := c.Dev.MSRRead(c.CmdReg)
			if err != nil {
				return 0, 0, err
			}

			statusWord = cmdLo

			_, dataLo, err := c.Dev.MSRRead(c.DataReg)
			if err != nil {
				return 0, 0, err
			}

			response = dataLo
		}

		if statusWord&runBusyBit == 0 {
			return response, statusWord &^ runBusyBit, nil
		}

		if time.Now().After(deadline) {
			return 0, 0, hwerr.New(hwerr.KindTimeout, "mailbox RunBusy did not clear")
		}

		time.Sleep(time.Millisecond)
	}
}

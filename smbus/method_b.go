package smbus

import (
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

// methodB bit-bangs the i801 host controller directly over I/O ports,
// per spec.md §4.4: check pre-conditions, program ADD/CMD/DAT, start the
// chosen transaction, poll status under waitIntr, classify any error
// bits, and issue KILL on a stall.
type methodB struct {
	io       portIO
	basePort uint16
	waitIntr time.Duration
}

func (m *methodB) reg(offset uint16) uint16 { return m.basePort + offset }

func (m *methodB) readStatus() (uint8, error) {
	v, err := m.io.PortRead(m.reg(regHstSts), 1)

	return uint8(v), err
}

func (m *methodB) clearStatus() error {
	return m.io.PortWrite(m.reg(regHstSts), 1, stsAllExceptIU)
}

// awaitReady checks HOST_BUSY is clear and dismisses any stale status
// flags before starting a new transaction.
func (m *methodB) awaitReady() error {
	sts, err := m.readStatus()
	if err != nil {
		return err
	}

	if sts&stsHostBusy != 0 {
		return hwerr.New(hwerr.KindBusError, "smbus host busy before transaction")
	}

	if sts&stsClearFlags != 0 {
		if err := m.clearStatus(); err != nil {
			return err
		}
	}

	return nil
}

func (m *methodB) program(dev uint8, direction int, cmd uint8, data0, data1 uint8, hasData1 bool) error {
	addr := uint32(dev)<<1 | uint32(direction&1)

	if err := m.io.PortWrite(m.reg(regHstAdd), 1, addr); err != nil {
		return err
	}

	if err := m.io.PortWrite(m.reg(regHstCmd), 1, uint32(cmd)); err != nil {
		return err
	}

	if direction == i2cWrite {
		if err := m.io.PortWrite(m.reg(regHstDat0), 1, uint32(data0)); err != nil {
			return err
		}

		if hasData1 {
			if err := m.io.PortWrite(m.reg(regHstDat1), 1, uint32(data1)); err != nil {
				return err
			}
		}
	}

	return nil
}

// run starts xact and polls until BYTE_DONE/INTR, an error flag, or
// waitIntr elapses (spec.md §4.4).
func (m *methodB) run(xact uint32) error {
	if err := m.io.PortWrite(m.reg(regHstCnt), 1, cntStart|xact); err != nil {
		return err
	}

	deadline := time.Now().Add(m.waitIntr)
	for {
		sts, err := m.readStatus()
		if err != nil {
			return err
		}

		switch {
		case sts&stsFailed != 0:
			_ = m.clearStatus()

			return hwerr.New(hwerr.KindFailed, "smbus FAILED")
		case sts&stsBusErr != 0:
			_ = m.clearStatus()

			return hwerr.New(hwerr.KindBusError, "smbus BUS_ERR")
		case sts&stsDevErr != 0:
			_ = m.clearStatus()

			return hwerr.New(hwerr.KindDeviceError, "smbus DEV_ERR")
		case sts&(stsByteDone|stsIntr) != 0:
			return m.clearStatus()
		}

		if time.Now().After(deadline) {
			if err := m.KillAndClear(); err != nil {
				Logger.Printf("kill after stall: %v", err)
			}

			return hwerr.New(hwerr.KindTimeout, "smbus INTR never arrived")
		}
	}
}

func (m *methodB) ReadByte(dev, cmd uint8) (uint8, error) {
	if err := m.awaitReady(); err != nil {
		return 0, err
	}

	if err := m.program(dev, i2cRead, cmd, 0, 0, false); err != nil {
		return 0, err
	}

	if err := m.run(cntByteData); err != nil {
		return 0, err
	}

	v, err := m.io.PortRead(m.reg(regHstDat0), 1)

	return uint8(v), err
}

func (m *methodB) WriteByte(dev, cmd, value uint8) error {
	if err := m.awaitReady(); err != nil {
		return err
	}

	if err := m.program(dev, i2cWrite, cmd, value, 0, false); err != nil {
		return err
	}

	return m.run(cntByteData)
}

func (m *methodB) ProcCall(dev, cmd uint8, value uint16) (uint16, error) {
	if err := m.awaitReady(); err != nil {
		return 0, err
	}

	lo := uint8(value)
	hi := uint8(value >> 8)

	if err := m.program(dev, i2cWrite, cmd, lo, hi, true); err != nil {
		return 0, err
	}

	if err := m.run(cntProcCall); err != nil {
		return 0, err
	}

	lov, err := m.io.PortRead(m.reg(regHstDat0), 1)
	if err != nil {
		return 0, err
	}

	hiv, err := m.io.PortRead(m.reg(regHstDat1), 1)
	if err != nil {
		return 0, err
	}

	return uint16(lov) | uint16(hiv)<<8, nil
}

// KillAndClear implements the §4.4 recovery path: set KILL, then clear
// status, disabling PEC/E32B as part of cleanup.
func (m *methodB) KillAndClear() error {
	if err := m.io.PortWrite(m.reg(regHstCnt), 1, cntKill); err != nil {
		return err
	}

	if err := m.clearStatus(); err != nil {
		return err
	}

	aux, err := m.io.PortRead(m.reg(regAuxCtl), 1)
	if err != nil {
		return err
	}

	return m.io.PortWrite(m.reg(regAuxCtl), 1, uint32(uint8(aux)&^(auxCRC|auxE32B)))
}

package mailbox

import (
	"testing"
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

func TestPackCommandPCODEParam2Width(t *testing.T) {
	t.Parallel()

	word := PackCommand(PCODEVariant, 0x10, 0x02, 0x1FFF, true)

	if word&runBusyBit == 0 {
		t.Fatal("expected RunBusy bit set")
	}

	if got := (word >> 16) & 0x1FFF; got != 0x1FFF {
		t.Fatalf("Param2 = 0x%X, want 0x1FFF", got)
	}

	if got := uint8(word); got != 0x10 {
		t.Fatalf("Cmd = 0x%X, want 0x10", got)
	}
}

func TestPackCommandOCParam2Width(t *testing.T) {
	t.Parallel()

	// 9 bits wide would overflow an 8-bit Param2; only the low byte
	// should survive for the OC variant.
	word := PackCommand(OCVariant, 0x21, 0, 0x1FF, false)

	if got := (word >> 16) & 0xFF; got != 0xFF {
		t.Fatalf("Param2 = 0x%X, want 0xFF (truncated)", got)
	}

	if word&runBusyBit != 0 {
		t.Fatal("RunBusy should be clear")
	}
}

// fakeCarrier resolves RunBusy after a fixed number of polls.
type fakeCarrier struct {
	pollsUntilReady int
	response        uint32
	status          uint32
	polls           int
}

func (f *fakeCarrier) Exchange(cmdWord uint32, dataValue uint32, timeout time.Duration) (uint32, uint32, error) {
	f.polls++

	if f.polls < f.pollsUntilReady {
		return 0, runBusyBit, nil
	}

	return f.response, f.status, nil
}

func TestRequestSuccess(t *testing.T) {
	t.Parallel()

	fc := &fakeCarrier{pollsUntilReady: 1, response: 0x1234, status: 0}

	got, err := Request(fc, PCODEVariant, CmdVCCIOVoltage, 0, 0, 0, time.Millisecond)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if got != 0x1234 {
		t.Fatalf("response = 0x%X, want 0x1234", got)
	}
}

func TestRequestNonZeroStatusIsAbsent(t *testing.T) {
	t.Parallel()

	fc := &fakeCarrier{pollsUntilReady: 1, response: 0, status: 0x02}

	_, err := Request(fc, PCODEVariant, CmdVCCIOVoltage, 0, 0, 0, time.Millisecond)
	if !hwerr.Is(err, hwerr.KindAbsent) {
		t.Fatalf("err = %v, want KindAbsent", err)
	}
}

// stuckMMIO always reports RunBusy set in the high DWORD.
type stuckMMIO struct{}

func (stuckMMIO) PhyMemPCRead64(bus, dev, fun uint8, baseCfgOffset uint16, addrMask, addrOffset uint64) (uint64, error) {
	return uint64(runBusyBit) << 32, nil
}

func (stuckMMIO) PhyMemPCWrite32(bus, dev, fun uint8, baseCfgOffset uint16, addrMask, addrOffset uint64, value uint32) error {
	return nil
}

func TestMCHBARCarrierTimesOut(t *testing.T) {
	t.Parallel()

	c := NewMCHBARCarrier(stuckMMIO{}, 0x5DA0, 0x5DA4)

	_, _, err := c.Exchange(PackCommand(PCODEVariant, CmdVCCIOVoltage, 0, 0, true), 0, time.Millisecond)
	if !hwerr.Is(err, hwerr.KindTimeout) {
		t.Fatalf("err = %v, want KindTimeout", err)
	}
}

// readyMSR clears RunBusy on the first poll.
type readyMSR struct {
	dataReg, cmdReg  uint32
	response, status uint32
}

func (r *readyMSR) MSRRead(reg uint32) (uint32, uint32, error) {
	if reg == r.cmdReg && r.cmdReg != r.dataReg {
		return 0, r.status, nil
	}

	return r.status, r.response, nil
}

func (r *readyMSR) MSRWrite(reg uint32, hi, lo uint32) error { return nil }

func TestMSRCarrierCombined(t *testing.T) {
	t.Parallel()

	m := &readyMSR{dataReg: 0x150, cmdReg: 0x150, response: 0xAA, status: 0}
	c := NewOCMSRCarrier(m)

	resp, status, err := c.Exchange(0, 0, time.Millisecond)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	if resp != 0xAA || status != 0 {
		t.Fatalf("resp=0x%X status=0x%X, want resp=0xAA status=0", resp, status)
	}
}

func TestMSRCarrierSeparateRegisters(t *testing.T) {
	t.Parallel()

	m := &readyMSR{dataReg: 0x608, cmdReg: 0x607, response: 0x55, status: 0}
	c := NewPCODEMSRCarrier(m)

	resp, _, err := c.Exchange(0, 0, time.Millisecond)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	if resp != 0x55 {
		t.Fatalf("resp = 0x%X, want 0x55", resp)
	}
}

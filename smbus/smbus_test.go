package smbus

import (
	"testing"

	"github.com/kramelec/imcsnap/hwerr"
)

// fakeTransport is an in-memory SMBus device for unit tests: a map of
// (dev,cmd) -> value plus optional per-(dev,cmd) errors.
type fakeTransport struct {
	bytes map[[2]uint8]uint8
	procs map[[2]uint8]uint16
	err   map[[2]uint8]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		bytes: make(map[[2]uint8]uint8),
		procs: make(map[[2]uint8]uint16),
		err:   make(map[[2]uint8]error),
	}
}

func (f *fakeTransport) ReadByte(dev, cmd uint8) (uint8, error) {
	if err := f.err[[2]uint8{dev, cmd}]; err != nil {
		return 0, err
	}

	return f.bytes[[2]uint8{dev, cmd}], nil
}

func (f *fakeTransport) WriteByte(dev, cmd, value uint8) error {
	if err := f.err[[2]uint8{dev, cmd}]; err != nil {
		return err
	}

	f.bytes[[2]uint8{dev, cmd}] = value

	return nil
}

func (f *fakeTransport) ProcCall(dev, cmd uint8, value uint16) (uint16, error) {
	if err := f.err[[2]uint8{dev, cmd}]; err != nil {
		return 0, err
	}

	return f.procs[[2]uint8{dev, cmd}], nil
}

func (f *fakeTransport) KillAndClear() error { return nil }

func TestSPD5HubVendorID(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.bytes[[2]uint8{0x50, mrVendor}] = 0xCE | 0x80 // Samsung, parity set
	ft.bytes[[2]uint8{0x50, mrVendorHi}] = 0x00

	hub := NewSPD5Hub(ft, 0x50)

	v, err := hub.VendorID()
	if err != nil {
		t.Fatalf("VendorID: %v", err)
	}

	if v.Name != "Samsung" {
		t.Fatalf("VendorID = %+v, want Samsung", v)
	}
}

func TestSPD5HubSetPagePrefersProcCall(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	hub := NewSPD5Hub(ft, 0x50)

	if err := hub.SetPage(3); err != nil {
		t.Fatalf("SetPage: %v", err)
	}

	if hub.IsPageProtected {
		t.Fatal("should not be page-protected when proc_call succeeds")
	}
}

func TestSPD5HubSetPageFallsBackAndMarksProtected(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.err[[2]uint8{0x50, mrPageSelect}] = hwerr.New(hwerr.KindUnsupported, "proc_call refused")

	hub := NewSPD5Hub(ft, 0x50)

	if err := hub.SetPage(1); err == nil {
		t.Fatal("expected error when both proc_call and write_byte are refused")
	}

	if !hub.IsPageProtected {
		t.Fatal("expected slot to be marked page-protected")
	}
}

func TestSPD5HubDumpShortOnFailure(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	// First page of 128 bytes succeeds; page 1 select fails, so Dump
	// should return exactly 128 bytes (spec.md §8 scenario 3: a short
	// dump is acceptable).
	ft.err[[2]uint8{0x50, mrPageSelect}] = nil

	hub := NewSPD5Hub(ft, 0x50)

	// Force page-select failure starting from page 1 by breaking
	// ProcCall for any non-zero page via a thin wrapper.
	limited := &pageLimitedTransport{fakeTransport: ft, allowPages: map[uint8]bool{0: true}}
	hub.Transport = limited

	dump := hub.Dump()
	if len(dump) != spd5PageSize {
		t.Fatalf("Dump length = %d, want %d", len(dump), spd5PageSize)
	}

	if len(dump)%128 != 0 || len(dump) > spd5TotalSize {
		t.Fatalf("Dump length %d violates self-consistency invariant", len(dump))
	}
}

// pageLimitedTransport wraps fakeTransport, rejecting SetPage's
// PROC_CALL write for any page not in allowPages.
type pageLimitedTransport struct {
	*fakeTransport
	allowPages map[uint8]bool
}

func (p *pageLimitedTransport) ProcCall(dev, cmd uint8, value uint16) (uint16, error) {
	if cmd == mrPageSelect && !p.allowPages[uint8(value)] {
		return 0, hwerr.New(hwerr.KindUnsupported, "page refused")
	}

	return p.fakeTransport.ProcCall(dev, cmd, value)
}

func (p *pageLimitedTransport) WriteByte(dev, cmd, value uint8) error {
	if cmd == mrPageSelect && !p.allowPages[value] {
		return hwerr.New(hwerr.KindUnsupported, "page refused")
	}

	return p.fakeTransport.WriteByte(dev, cmd, value)
}

func TestPMICProbeNonRichtek(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.bytes[[2]uint8{0x1A, regR3C}] = 0x11
	ft.bytes[[2]uint8{0x1A, regR3C + 1}] = 0x22

	p, err := ProbePMIC(ft, 0x1A)
	if err != nil {
		t.Fatalf("ProbePMIC: %v", err)
	}

	if p.IsRichtek {
		t.Fatal("expected non-Richtek vendor id to not match")
	}
}

// pmicFakeTransport models a Richtek ADC: R31 reads back 0 while R30 is
// the NULL channel and a nonzero constant otherwise, reproducing the
// handshake real hardware performs.
type pmicFakeTransport struct {
	addr uint8
	r30  uint8
	rev  uint8
	vhi  uint8
	vlo  uint8
}

func (p *pmicFakeTransport) ReadByte(dev, cmd uint8) (uint8, error) {
	switch cmd {
	case regR3C:
		return p.vlo, nil
	case regR3C + 1:
		return p.vhi, nil
	case regR3B:
		return p.rev, nil
	case regR30:
		return p.r30, nil
	case regR31:
		if p.r30 == adcChannelNull {
			return 0, nil
		}

		return 40, nil // ~0.6V at the 0.015V/step scale, a plausible rail reading
	default:
		return 0, nil
	}
}

func (p *pmicFakeTransport) WriteByte(dev, cmd, value uint8) error {
	if cmd == regR30 {
		p.r30 = value
	}

	return nil
}

func (p *pmicFakeTransport) ProcCall(dev, cmd uint8, value uint16) (uint16, error) {
	return 0, hwerr.New(hwerr.KindUnsupported, "pmic has no proc_call use")
}

func (p *pmicFakeTransport) KillAndClear() error { return nil }

func TestPMICReadAllRestoresR30(t *testing.T) {
	t.Parallel()

	ft := &pmicFakeTransport{
		addr: 0x1A,
		r30:  0x55, // original selection, something no ADC channel equals
		vlo:  byte(richtekVendorID & 0xFF),
		vhi:  byte(richtekVendorID >> 8),
	}

	p, err := ProbePMIC(ft, 0x1A)
	if err != nil {
		t.Fatalf("ProbePMIC: %v", err)
	}

	if !p.IsRichtek {
		t.Fatal("expected Richtek vendor id to match")
	}

	readings, err := p.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if readings.SWA == 0 {
		t.Fatal("expected a decoded SWA reading")
	}

	if ft.r30 != 0x55 {
		t.Fatalf("R30 = 0x%02X, want restored 0x55", ft.r30)
	}
}

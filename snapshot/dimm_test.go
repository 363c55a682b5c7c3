package snapshot

import (
	"testing"

	"github.com/kramelec/imcsnap/smbus"
)

// fakeTransport is an in-memory SMBus device for unit tests, mirroring
// smbus's own unexported fake since that one isn't visible here.
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

const (
	mrVendorCmd = 3 // smbus.SPD5Hub's MR3, duplicated here since it's unexported there
)

func TestReadDIMMsSkipsEmptySlots(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.err[[2]uint8{spdBaseAddr, mrVendorCmd}] = errNak("not present") // slot 0: NAK
	ft.bytes[[2]uint8{spdBaseAddr + 1, mrVendorCmd}] = 0               // slot 1: present, reads zero vendor byte

	// slots 2 and 3: NAK
	ft.err[[2]uint8{spdBaseAddr + 2, mrVendorCmd}] = errNak("not present")
	ft.err[[2]uint8{spdBaseAddr + 3, mrVendorCmd}] = errNak("not present")

	dimms := readDIMMs(ft)

	if len(dimms) != 1 {
		t.Fatalf("len(dimms) = %d, want 1 (only slot 1 populated)", len(dimms))
	}

	if dimms[0].Slot != 1 {
		t.Fatalf("dimms[0].Slot = %d, want 1", dimms[0].Slot)
	}
}

type errNak string

func (e errNak) Error() string { return string(e) }

func TestProbeDIMMPMICStopsAtVendorWhenNotRichtek(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.bytes[[2]uint8{pmicPrimary, 0x3C}] = 0xAA // vendor id bytes spelling a non-Richtek id
	ft.bytes[[2]uint8{pmicPrimary, 0x3D}] = 0xBB
	ft.bytes[[2]uint8{pmicPrimary, 0x3B}] = 0x01 // revision

	rec := probeDIMMPMIC(ft, 0)

	if rec == nil {
		t.Fatal("probeDIMMPMIC returned nil, want a vendor/revision record")
	}

	if rec.IsRichtek {
		t.Fatal("IsRichtek = true, want false for a non-Richtek vendor id")
	}

	if rec.Readings != (smbus.PMICReadings{}) {
		t.Fatalf("Readings = %+v, want zero value when not Richtek", rec.Readings)
	}
}

func TestProbeDIMMPMICReadsAllWhenRichtek(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	ft.bytes[[2]uint8{pmicPrimary, 0x3C}] = 0x0C // richtek vendor id: hi=0x0A, lo=0x0C
	ft.bytes[[2]uint8{pmicPrimary, 0x3D}] = 0x0A
	ft.bytes[[2]uint8{pmicPrimary, 0x3B}] = 0x02

	rec := probeDIMMPMIC(ft, 0)

	if rec == nil {
		t.Fatal("probeDIMMPMIC returned nil, want a Richtek record")
	}

	if !rec.IsRichtek {
		t.Fatal("IsRichtek = false, want true")
	}
}

func TestRoundPMICReadings(t *testing.T) {
	t.Parallel()

	in := smbus.PMICReadings{SWA: 1.23456, V1_8: 1.800049}
	out := roundPMICReadings(in)

	if out.SWA != 1.2346 {
		t.Fatalf("SWA = %v, want 1.2346", out.SWA)
	}

	if out.V1_8 != 1.8 {
		t.Fatalf("V1_8 = %v, want 1.8", out.V1_8)
	}
}

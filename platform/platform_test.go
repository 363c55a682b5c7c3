package platform

import (
	"encoding/binary"
	"testing"

	"github.com/kramelec/imcsnap/bitfield"
)

func fakeVendorLeaf() (uint32, uint32, uint32, uint32) {
	// "GenuineIntel" split across ebx,edx,ecx per the CPUID convention.
	return 0, 0x756E6547, 0x6C65746E, 0x49656E69
}

func TestIdentifyCPUAlderLake(t *testing.T) {
	origCPUID, origExt := cpuidFn, cpuidExtFn
	defer func() { cpuidFn, cpuidExtFn = origCPUID, origExt }()

	cpuidFn = func(leaf uint32) (uint32, uint32, uint32, uint32) {
		if leaf == 0 {
			return fakeVendorLeaf()
		}

		// family=6 (base), model=0x97 (ext model 9, base model 7), stepping 1
		eax := uint32(0x6) << 8
		eax |= uint32(0x7) << 4
		eax |= uint32(0x9) << 16
		eax |= 1

		return eax, 0, 0, 0
	}

	cpuidExtFn = func(leaf, sub uint32) (uint32, uint32, uint32, uint32) { return 0, 0, 0, 0 }

	id, err := identifyCPU()
	if err != nil {
		t.Fatalf("identifyCPU: %v", err)
	}

	if id.Generation != Generation12th {
		t.Fatalf("Generation = %v, want 12th-gen", id.Generation)
	}

	if id.Model != 0x97 {
		t.Fatalf("Model = 0x%X, want 0x97", id.Model)
	}
}

func TestIdentifyCPURejectsUnknownVendor(t *testing.T) {
	origCPUID := cpuidFn
	defer func() { cpuidFn = origCPUID }()

	cpuidFn = func(leaf uint32) (uint32, uint32, uint32, uint32) {
		return 0, 0x68747541, 0x444D4163, 0x69746E65 // "AuthenticAMD"
	}

	if _, err := identifyCPU(); err == nil {
		t.Fatal("expected rejection of non-Intel vendor")
	}
}

// fakeMem is an in-memory physical-address space for unit tests.
type fakeMem struct {
	data map[uint64][]byte
}

func newFakeMem() *fakeMem { return &fakeMem{data: make(map[uint64][]byte)} }

func (m *fakeMem) PhyMemRead(addr uint64, size int) ([]byte, error) {
	buf, ok := m.data[addr]
	if !ok {
		return make([]byte, size), nil
	}

	if len(buf) < size {
		out := make([]byte, size)
		copy(out, buf)

		return out, nil
	}

	return buf[:size], nil
}

func (m *fakeMem) put(addr uint64, buf []byte) { m.data[addr] = buf }

func TestReadInterChannel(t *testing.T) {
	t.Parallel()

	mem := newFakeMem()

	word := uint32(bitfield.DDR5) // DDRType in bits 0..3
	word |= 2 << 4                // ChannelLMap
	word |= 0x10 << 8             // ChannelSSize
	word |= 1 << 18               // HalfCacheline

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf, word)
	mem.put(0x1000_0000+interChannelOff, buf)

	inter, err := readInterChannel(mem, 0x1000_0000, 0)
	if err != nil {
		t.Fatalf("readInterChannel: %v", err)
	}

	if inter.DDRType != bitfield.DDR5 {
		t.Fatalf("DDRType = %v, want DDR5", inter.DDRType)
	}

	if !inter.HalfCacheline {
		t.Fatal("expected HalfCacheline set")
	}
}

func TestDeriveTimingsDDR5(t *testing.T) {
	t.Parallel()

	mem := newFakeMem()

	buf := make([]byte, perChannelReadLen)
	// gen12Table offsets: tCWL@0x58[0:5], tWRRDsg@0x54[0:6], tRDPRE@0x5C[0:5]
	binary.LittleEndian.PutUint32(buf[0x40:], 20) // tCL
	binary.LittleEndian.PutUint32(buf[0x54:], 30) // tWRRDsg
	binary.LittleEndian.PutUint32(buf[0x58:], 14) // tCWL
	binary.LittleEndian.PutUint32(buf[0x5C:], 12) // tRDPRE/tWRPRE packed

	block := perChannelBlock{reader: bitfield.NewReader(buf), raw: buf}

	timings, err := deriveTimings(block, gen12Table, Generation12th, bitfield.DDR5, false)
	if err != nil {
		t.Fatalf("deriveTimings: %v", err)
	}

	if timings.CL != 20 {
		t.Fatalf("CL = %d, want 20", timings.CL)
	}

	// tWTR_L = tWRRDsg - tCWL - BL(8) - 2 = 30 - 14 - 8 - 2 = 6
	if timings.WTRL != 6 {
		t.Fatalf("WTRL = %d, want 6", timings.WTRL)
	}
}

func TestDeriveSpeedMTs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		qclkFreqMHz float64
		cmiRatio    uint64
		want        uint64
	}{
		{"zero ratio absent", 1600, 0, 0},
		{"below rounding threshold", 400, 1, 800},
		{"rounds up to nearest 10", 2466.75, 1, 4940},
	}

	for _, c := range cases {
		if got := deriveSpeedMTs(c.qclkFreqMHz, c.cmiRatio); got != c.want {
			t.Fatalf("%s: deriveSpeedMTs(%v,%v) = %d, want %d", c.name, c.qclkFreqMHz, c.cmiRatio, got, c.want)
		}
	}
}

func TestApplyMemorySpeeds(t *testing.T) {
	t.Parallel()

	report := Report{
		SA: SAReport{QCLKFreqMHz: 3200},
		Controllers: []Controller{
			{Channels: [channelsPerController]ChannelInfo{
				{Timings: Timings{CMIRatio: 2}},
				{Timings: Timings{CMIRatio: 4}},
			}},
		},
	}

	applyMemorySpeeds(&report)

	if got := report.Controllers[0].Channels[0].Timings.SpeedMTs; got != 3200 {
		t.Fatalf("channel 0 SpeedMTs = %d, want 3200", got)
	}

	if got := report.Controllers[0].Channels[1].Timings.SpeedMTs; got != 1600 {
		t.Fatalf("channel 1 SpeedMTs = %d, want 1600", got)
	}
}

func TestParseMRStorageAmbiguousFallsBackToHex(t *testing.T) {
	t.Parallel()

	raw := make([]byte, perChannelReadLen)
	// Two occurrences of the 12th-gen anchor: ambiguous.
	copy(raw[mrStorageOffset+5:], []byte{0x1B, 0x1B, 0x1B})
	copy(raw[mrStorageOffset+40:], []byte{0x1B, 0x1B, 0x1B})
	raw[mrStorageOffset+100] = selectAllPDA

	mrs := parseMRStorage(raw, Generation12th)

	if !mrs.Ambiguous {
		t.Fatal("expected ambiguous MR storage with two anchor matches")
	}

	if len(mrs.CandidateOffsets) != 2 {
		t.Fatalf("CandidateOffsets = %v, want 2 entries", mrs.CandidateOffsets)
	}

	if mrs.RawHex == "" {
		t.Fatal("expected raw hex fallback to be populated")
	}
}

func TestParseMRStorage15thGen(t *testing.T) {
	t.Parallel()

	raw := make([]byte, perChannelReadLen)

	area := raw[mrStorageOffset:]
	area[0] = 0x12 // MR34
	area[1] = 0x09 // MR35 (first byte of the anchor triple)
	area[2] = 0x09 // MR36 (second byte of the anchor triple)
	area[3] = 0x12 // MR37 (last byte of the anchor triple, anchor = area[1..3])
	area[4] = 0xAA // MR4
	area[5] = 0xBB // MR5
	area[6] = 0xCC // MR6
	area[7] = 0xDD // MR8
	area[20] = selectAllPDA

	mrs := parseMRStorage(raw, Generation15th)

	if mrs.Ambiguous {
		t.Fatalf("expected unambiguous parse, got ambiguous (candidates=%v)", mrs.CandidateOffsets)
	}

	if mrs.MR37Offset != 3 {
		t.Fatalf("MR37Offset = %d, want 3", mrs.MR37Offset)
	}

	if mrs.MR34Offset != 0 {
		t.Fatalf("MR34Offset = %d, want 0", mrs.MR34Offset)
	}

	if mrs.MR4 != 0xAA {
		t.Fatalf("MR4 = 0x%X, want 0xAA", mrs.MR4)
	}
}

func TestReadCapabilities(t *testing.T) {
	t.Parallel()

	cfg := &fakeCapCfg{
		words: map[uint16]uint32{
			pciOffsetCap0: 1 | (10 << 1) | (5 << 13), // OC allowed, DDR4 rate 10*200, DDR5 rate 5*200
			pciOffsetCap1: 0,
			pciOffsetCap2: 0,
			pciOffsetCap3: 0,
		},
	}

	caps, err := readCapabilities(cfg)
	if err != nil {
		t.Fatalf("readCapabilities: %v", err)
	}

	if !caps.DDROverclockAllowed {
		t.Fatal("expected DDROverclockAllowed")
	}

	if caps.MaxDDR4Rate != 2000 {
		t.Fatalf("MaxDDR4Rate = %d, want 2000", caps.MaxDDR4Rate)
	}
}

type fakeCapCfg struct {
	words map[uint16]uint32
}

func (f *fakeCapCfg) PCIConfigRead(bus, dev, fun uint8, offset uint16, size int) ([]byte, error) {
	v := f.words[offset]
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)

	return buf, nil
}

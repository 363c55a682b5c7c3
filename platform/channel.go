package platform

import (
	"github.com/kramelec/imcsnap/bitfield"
	"github.com/kramelec/imcsnap/hwerr"
)

const (
	controllerSpacing = 0x10000
	interChannelOff   = 0xD800
	intraChannelOff   = 0xD804
	dimmCharOff       = 0xD80C
	perChannelBase    = 0xE000
	perChannelStride  = 0x800
	perChannelReadLen = 0x600 // covers every offset in registers.go (highest is tXSDLL at 0x4C0) plus the MR storage area at 0x200
)

// InterChannel is the per-controller record at MCHBAR+0xD800.
type InterChannel struct {
	DDRType       bitfield.DDRType
	ChannelLMap   uint64
	ChannelSSize  uint64
	ChannelWidth  uint64
	HalfCacheline bool
}

// DimmChannelInfo is the per-channel-number record spanning the
// intra-channel (0xD804+cnum*4) and DIMM-characteristics (0xD80C+cnum*4)
// registers.
type DimmChannelInfo struct {
	DimmLMap uint64

	ECC, EIM, CRC   bool
	DimmLSize       uint64
	DimmSSize       uint64
	WidthL, WidthS  uint64
	RanksL, RanksS  uint64
	DDR5_8GbL       bool
	DDR5_8GbS       bool
	BankGroupOption uint64
	DecoderEBH      uint64
}

// readBlock reads one little-endian block from MCHBAR-relative addr.
func readBlock(mem physMem, mchbar uint64, addr uint64, size int) (bitfield.Reader, error) {
	buf, err := mem.PhyMemRead(mchbar+addr, size)
	if err != nil {
		return bitfield.Reader{}, err
	}

	return bitfield.NewReader(buf), nil
}

func readInterChannel(mem physMem, mchbar uint64, controller int) (InterChannel, error) {
	base := uint64(controller*controllerSpacing) + interChannelOff

	r, err := readBlock(mem, mchbar, base, 8)
	if err != nil {
		return InterChannel{}, err
	}

	t := gen12Table.interChannel // identical across generations (registers.go)

	ddrCode := r.GetBits(t["DDRType"].offset, t["DDRType"].firstBit, t["DDRType"].lastBit)

	return InterChannel{
		DDRType:       bitfield.DDRType(ddrCode),
		ChannelLMap:   r.GetBits(t["ChannelLMap"].offset, t["ChannelLMap"].firstBit, t["ChannelLMap"].lastBit),
		ChannelSSize:  r.GetBits(t["ChannelSSize"].offset, t["ChannelSSize"].firstBit, t["ChannelSSize"].lastBit),
		ChannelWidth:  r.GetBits(t["ChannelWidth"].offset, t["ChannelWidth"].firstBit, t["ChannelWidth"].lastBit),
		HalfCacheline: r.GetBits(t["HalfCacheline"].offset, t["HalfCacheline"].firstBit, t["HalfCacheline"].lastBit) != 0,
	}, nil
}

func readDimmChannelInfo(mem physMem, mchbar uint64, controller, cnum int) (DimmChannelInfo, error) {
	intraBase := uint64(controller*controllerSpacing) + intraChannelOff + uint64(cnum)*4
	dimmBase := uint64(controller*controllerSpacing) + dimmCharOff + uint64(cnum)*4

	intra, err := readBlock(mem, mchbar, intraBase, 4)
	if err != nil {
		return DimmChannelInfo{}, err
	}

	dimm, err := readBlock(mem, mchbar, dimmBase, 4)
	if err != nil {
		return DimmChannelInfo{}, err
	}

	it := gen12Table.intraChannel
	dt := gen12Table.dimmChar

	get := func(r bitfield.Reader, t map[string]field, name string) uint64 {
		f := t[name]

		return r.GetBits(f.offset, f.firstBit, f.lastBit)
	}

	return DimmChannelInfo{
		DimmLMap:        get(intra, it, "DimmLMap"),
		ECC:             get(dimm, dt, "ECC") != 0,
		EIM:             get(dimm, dt, "EIM") != 0,
		CRC:             get(dimm, dt, "CRC") != 0,
		DimmLSize:       get(dimm, dt, "DimmLSize"),
		DimmSSize:       get(dimm, dt, "DimmSSize"),
		WidthL:          get(dimm, dt, "WidthL"),
		WidthS:          get(dimm, dt, "WidthS"),
		RanksL:          get(dimm, dt, "RanksL"),
		RanksS:          get(dimm, dt, "RanksS"),
		DDR5_8GbL:       get(dimm, dt, "DDR5_8GbL") != 0,
		DDR5_8GbS:       get(dimm, dt, "DDR5_8GbS") != 0,
		BankGroupOption: get(dimm, dt, "BankGroupOption"),
		DecoderEBH:      get(dimm, dt, "DecoderEBH"),
	}, nil
}

// perChannelBlock is the raw 0x600-byte (perChannelReadLen) MC register
// window for one
// channel, kept around so both timing-field decode and MR-storage
// parsing (mrstorage.go) can read from it without a second MMIO trip.
type perChannelBlock struct {
	reader bitfield.Reader
	raw    []byte
}

func readPerChannelBlock(mem physMem, mchbar uint64, channel int) (perChannelBlock, error) {
	addr := perChannelBase + uint64(channel)*perChannelStride

	buf, err := mem.PhyMemRead(mchbar+addr, perChannelReadLen)
	if err != nil {
		return perChannelBlock{}, err
	}

	return perChannelBlock{reader: bitfield.NewReader(buf), raw: buf}, nil
}

func (b perChannelBlock) field(t registerTable, name string) (uint64, error) {
	f, ok := t.perChannel[name]
	if !ok {
		return 0, hwerr.New(hwerr.KindUnsupported, "field not in active generation table: "+name)
	}

	return b.reader.GetBits(f.offset, f.firstBit, f.lastBit), nil
}

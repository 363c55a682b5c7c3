package platform

import (
	"encoding/binary"

	"github.com/kramelec/imcsnap/hwerr"
)

const (
	pciOffsetMCHBAR = 0x48
	pciOffsetDMIBAR = 0x68

	mchbarEnableBit  = 0x1
	mchbarMinAddress = 0xFE000000
	mchbarAddrMask   = ^uint64(0xFFF) // strip the low enable/reserved bits
)

// pciConfig is implemented by *kdrv.Device.
type pciConfig interface {
	PCIConfigRead(bus, dev, fun uint8, offset uint16, size int) ([]byte, error)
}

// physMem is implemented by *kdrv.Device.
type physMem interface {
	PhyMemRead(addr uint64, size int) ([]byte, error)
}

const intelVendorWord = 0x8086

// Bars holds the two base addresses spec.md §4.5 reads from PCI 0:0.0.
type Bars struct {
	MCHBAR uint64
	DMIBAR uint64 // zero if absent; DMIBAR is optional
}

// readBars reads and validates MCHBAR (required) and DMIBAR (optional,
// sanity-checked by re-reading its own vendor word).
func readBars(cfg pciConfig, mem physMem) (Bars, error) {
	mchbar, err := readBAR64(cfg, pciOffsetMCHBAR)
	if err != nil {
		return Bars{}, err
	}

	if mchbar&mchbarEnableBit == 0 {
		return Bars{}, hwerr.New(hwerr.KindAbsent, "MCHBAR not enabled")
	}

	base := mchbar &^ (mchbarEnableBit)
	base &= mchbarAddrMask

	if base < mchbarMinAddress {
		return Bars{}, hwerr.New(hwerr.KindDecode, "MCHBAR base below expected MMIO window")
	}

	bars := Bars{MCHBAR: base}

	dmibarRaw, err := readBAR64(cfg, pciOffsetDMIBAR)
	if err != nil || dmibarRaw&mchbarEnableBit == 0 {
		return bars, nil // DMIBAR is optional, absence is not fatal
	}

	dmibar := dmibarRaw &^ mchbarEnableBit & mchbarAddrMask

	if !dmibarLooksLikeIntel(mem, dmibar) {
		return bars, nil // sanity check failed, treat DMIBAR as absent
	}

	bars.DMIBAR = dmibar

	return bars, nil
}

// dmibarLooksLikeIntel re-reads DMIBAR[0..4) and checks the low 16 bits
// against the Intel vendor word, the sanity check spec.md §4.5 requires
// before trusting an optional DMIBAR.
func dmibarLooksLikeIntel(mem physMem, dmibar uint64) bool {
	if dmibar == 0 {
		return false
	}

	data, err := mem.PhyMemRead(dmibar, 4)
	if err != nil || len(data) < 4 {
		return false
	}

	return binary.LittleEndian.Uint16(data) == intelVendorWord
}

func readBAR64(cfg pciConfig, offset uint16) (uint64, error) {
	data, err := cfg.PCIConfigRead(0, 0, 0, offset, 8)
	if err != nil {
		return 0, err
	}

	if len(data) < 8 {
		return 0, hwerr.New(hwerr.KindDecode, "short PCI config read for BAR")
	}

	return binary.LittleEndian.Uint64(data), nil
}

package smbus

import (
	"github.com/kramelec/imcsnap/bitfield"
	"github.com/kramelec/imcsnap/hwerr"
)

// SPD5 register addresses (spec.md §4.4/§6): the 5-byte-per-page-select
// JEDEC SPD5 hub datasheet layout.
const (
	mrVendor      = 3 // MR3: vendor id low byte (MR4 holds the high byte)
	mrVendorHi    = 4
	mrPageSelect  = 11 // MR11: SPD5 page select
	mrConfig      = 18 // MR18: hub configuration
	mrStatus      = 48 // MR48: hub status, gates a just-issued page switch
	mrTemperature = 49 // MR49: thermal sensor, high byte
	mrTempLo      = 50 // MR50: thermal sensor, low byte
)

const (
	statusIBIPendingMask = 0x80 // masked out of MR48 when gating a page switch
	spd5PageSize         = 128
	spd5NumPages         = 8
	spd5TotalSize        = spd5PageSize * spd5NumPages
	byteOffsetFlag       = 0x80 // byte reads target offset|0x80 within the active page
)

// SPD5Hub drives one DDR5 DIMM's SPD5 hub: page selection, status
// gating, and the full 1024-byte EEPROM dump (spec.md §4.4).
type SPD5Hub struct {
	Transport Transport
	Addr      uint8 // 0x50..0x53

	currentPage     uint8
	pageInitialized bool
	IsPageProtected bool
}

func NewSPD5Hub(t Transport, addr uint8) *SPD5Hub {
	return &SPD5Hub{Transport: t, Addr: addr}
}

// Present probes MR3; an SMBus error here (NAK) means the slot is empty
// (spec.md §8 scenario 5), not a hardware fault.
func (h *SPD5Hub) Present() bool {
	_, err := h.Transport.ReadByte(h.Addr, mrVendor)

	return err == nil
}

// VendorID reads and decodes the SPD5 hub's JEP-106 manufacturer id.
func (h *SPD5Hub) VendorID() (bitfield.JEP106, error) {
	lo, err := h.Transport.ReadByte(h.Addr, mrVendor)
	if err != nil {
		return bitfield.JEP106{}, err
	}

	hi, err := h.Transport.ReadByte(h.Addr, mrVendorHi)
	if err != nil {
		return bitfield.JEP106{}, err
	}

	return bitfield.DecodeJEP106(hi, lo), nil
}

// SetPage selects an SPD page (0..7). It prefers PROC_CALL, which is
// BIOS-write-protect-safe per spec.md §4.4, and falls back to a plain
// byte write; a refused fallback write marks the slot page-protected
// rather than failing the whole snapshot (spec.md §8 scenario 3).
// set_page is idempotent: calling it twice with the same page produces
// the same MR48 gating outcome as calling it once (spec.md §8).
func (h *SPD5Hub) SetPage(page uint8) error {
	if h.pageInitialized && h.currentPage == page && !h.IsPageProtected {
		return nil
	}

	if _, err := h.Transport.ProcCall(h.Addr, mrPageSelect, uint16(page)); err == nil {
		return h.afterPageSwitch(page)
	} else if !hwerr.Is(err, hwerr.KindUnsupported) {
		Logger.Printf("spd5 proc_call page select: %v", err)
	}

	if err := h.Transport.WriteByte(h.Addr, mrPageSelect, page); err != nil {
		h.IsPageProtected = true

		return hwerr.Wrap(hwerr.KindUnsupported, "spd5 page select refused (write protected)", err)
	}

	return h.afterPageSwitch(page)
}

func (h *SPD5Hub) afterPageSwitch(page uint8) error {
	status, err := h.Transport.ReadByte(h.Addr, mrStatus)
	if err != nil {
		return err
	}

	_ = status &^ statusIBIPendingMask // gate value observed, IBI-pending bit ignored per spec.md §4.4

	h.currentPage = page
	h.pageInitialized = true
	h.IsPageProtected = false

	return nil
}

// ReadByteAtOffset reads one byte from the active page at offset
// (0..127); the SPD5 hub targets offset|0x80 for data-space reads.
func (h *SPD5Hub) ReadByteAtOffset(offset uint8) (byte, error) {
	return h.Transport.ReadByte(h.Addr, offset|byteOffsetFlag)
}

// Dump reads all 8 pages (1024 bytes total). A page that cannot be
// selected truncates the dump there rather than failing outright --
// spec.md §8 explicitly allows a short (<1024 byte) dump, reflected by
// the returned slice's length.
func (h *SPD5Hub) Dump() []byte {
	out := make([]byte, 0, spd5TotalSize)

	for page := uint8(0); page < spd5NumPages; page++ {
		if err := h.SetPage(page); err != nil {
			Logger.Printf("spd5 dump: page %d: %v", page, err)

			return out
		}

		for off := uint8(0); off < spd5PageSize; off++ {
			b, err := h.ReadByteAtOffset(off)
			if err != nil {
				Logger.Printf("spd5 dump: page %d offset %d: %v", page, off, err)

				return out
			}

			out = append(out, b)
		}
	}

	return out
}

// Temperature reads the MR49/MR50 thermal register pair and decodes
// the 13-bit signed, quarter-degree value (spec.md §4.3/§4.4).
func (h *SPD5Hub) Temperature() (float64, error) {
	lo, err := h.Transport.ReadByte(h.Addr, mrTempLo)
	if err != nil {
		return 0, err
	}

	hi, err := h.Transport.ReadByte(h.Addr, mrTemperature)
	if err != nil {
		return 0, err
	}

	raw := uint64(lo) | uint64(hi)<<8

	return bitfield.TemperatureFromRaw(raw & 0x1FFF), nil
}

package platform

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/kramelec/imcsnap/bitfield"
)

const (
	mrStorageOffset = 0x200
	mrStorageSize   = 240
	selectAllPDA    = 0x7F
)

// rttPrefix tags one byte of the Rtt block by its top five bits, per
// spec.md §4.5's prefix table; the low three bits are the payload.
type rttPrefix uint8

const (
	prefixUnknown rttPrefix = iota
	prefixCKGroupA
	prefixCSGroupA
	prefixCAGroupA
	prefixCKGroupB
	prefixCSGroupB
	prefixCAGroupB
	prefixParkDqs
	prefixPark
	prefixMR13
)

var rttPrefixByNibble = map[byte]rttPrefix{
	0x20: prefixCKGroupA,
	0x28: prefixCSGroupA,
	0x30: prefixCAGroupA,
	0x38: prefixCKGroupB,
	0x40: prefixCSGroupB,
	0x48: prefixCAGroupB,
	0x50: prefixParkDqs,
	0x58: prefixPark,
	0x80: prefixMR13,
}

type RttEntry struct {
	Offset  int
	Prefix  rttPrefix
	Payload byte // low three bits, caller-decoded via RttOhms etc.
}

// MRStorage is the decoded 240-byte MRS storage area for one channel.
type MRStorage struct {
	TrimmedSize int

	Ambiguous        bool
	CandidateOffsets []int
	RawHex           string // set only when Ambiguous: raw hex dump per spec.md §9's fallback

	MR37Offset, MR34Offset int

	RttEntries []RttEntry

	MR34, MR35, MR36, MR37 byte

	RttWr, RttPark     bitfield.Enum
	RttNomWr, RttNomRd bitfield.Enum
	RttLoopback        bitfield.Enum
	MR13               bitfield.MR13Entry
	HasMR13            bool

	MR4, MR5, MR6, MR8     byte
	VrefDq, VrefCa, VrefCs float64
}

// parseMRStorage decodes the MR storage area: anchor search, Rtt prefix
// classification, MR34..MR37 and the fixed-order MR4..MR12 tail. It does
// not try per-rank 1x/2x/4x layout templates on 12th-gen, and the
// RttWr/RttPark/RttNom/RttLoopback fields are decoded only for 15th-gen
// (they stay zero on 12th-gen). raw is the full per-channel block
// (perChannelBlock.raw); the MRS storage area begins at mrStorageOffset
// within it.
func parseMRStorage(raw []byte, gen Generation) MRStorage {
	end := mrStorageOffset + mrStorageSize
	if end > len(raw) {
		end = len(raw)
	}

	area := raw[mrStorageOffset:end]

	trimmed := trimMRStorage(area)

	out := MRStorage{TrimmedSize: len(trimmed)}

	anchor := []byte{0x1B, 0x1B, 0x1B}
	if gen == Generation15th {
		anchor = []byte{0x09, 0x09, 0x12}
	}

	offsets := findAllAnchors(trimmed, anchor)

	switch len(offsets) {
	case 0:
		out.Ambiguous = true
		out.RawHex = hex.EncodeToString(trimmed)

		return out
	case 1:
		// The anchor's last byte is MR37 itself (for 15th-gen the anchor
		// is literally the MR35/MR36/MR37 byte triple). MR34 is then at
		// MR37-3 on 15th-gen and found by backwardWalkMR34 on 12th-gen.
		out.MR37Offset = offsets[0] + len(anchor) - 1
	default:
		// Overlaps with an innocuous byte sequence per spec.md §9: record
		// every candidate and fall back to a raw hex dump rather than guess.
		out.Ambiguous = true
		out.CandidateOffsets = offsets
		out.RawHex = hex.EncodeToString(trimmed)

		return out
	}

	if gen == Generation15th {
		out.MR34Offset = out.MR37Offset - 3
	} else {
		out.MR34Offset = backwardWalkMR34(trimmed, out.MR37Offset)
	}

	out.RttEntries = classifyRttBlock(trimmed, out.MR34Offset)

	at := func(off int) byte {
		if off < 0 || off >= len(trimmed) {
			return 0
		}

		return trimmed[off]
	}

	out.MR34 = at(out.MR34Offset)
	out.MR35 = at(out.MR34Offset + 1)
	out.MR36 = at(out.MR34Offset + 2)
	out.MR37 = at(out.MR37Offset)

	if gen == Generation15th {
		out.RttWr, _ = rttEnum(uint64(out.MR34) >> 3 & 0x7)
		out.RttPark, _ = rttEnum(uint64(out.MR34) & 0x7)
		out.RttNomWr, _ = rttEnum(uint64(out.MR35) & 0x7)
		out.RttNomRd, _ = rttEnum(uint64(out.MR35) >> 3 & 0x7)
		out.RttLoopback, _ = rttEnum(uint64(out.MR36) & 0x7)
	}

	if e, ok := bitfield.MR13Decode(uint64(findPrefix(out.RttEntries, prefixMR13))); ok {
		out.MR13 = e
		out.HasMR13 = true
	}

	// Fixed-order tail: MR4, MR5, MR6, MR8, MR10 (VrefDq), MR11 (VrefCa),
	// MR12 (VrefCs), immediately after MR37.
	tail := out.MR37Offset + 1
	tailByte := func(i int) byte { return at(tail + i) }

	out.MR4 = tailByte(0)
	out.MR5 = tailByte(1)
	out.MR6 = tailByte(2)
	out.MR8 = tailByte(3)

	if v, ok := bitfield.VrefPercent(uint64(tailByte(4))); ok {
		out.VrefDq = v
	}

	if v, ok := bitfield.VrefPercent(uint64(tailByte(5))); ok {
		out.VrefCa = v
	}

	if v, ok := bitfield.VrefPercent(uint64(tailByte(6))); ok {
		out.VrefCs = v
	}

	return out
}

func rttEnum(code uint64) (bitfield.Enum, bool) {
	ohms, ok := bitfield.RttOhms(code)
	if !ok {
		return bitfield.Enum{Code: code}, false
	}

	name := "disabled"
	if ohms > 0 {
		name = ohmString(ohms)
	}

	return bitfield.Enum{Code: code, Name: name}, true
}

func ohmString(ohms int) string {
	return fmt.Sprintf("%dohm", ohms)
}

// trimMRStorage finds the SelectAllPDA (0x7F) marker and trims to it; if
// absent, trims trailing zero bytes instead.
func trimMRStorage(area []byte) []byte {
	if idx := bytes.IndexByte(area, selectAllPDA); idx >= 0 {
		return area[:idx]
	}

	end := len(area)
	for end > 0 && area[end-1] == 0 {
		end--
	}

	return area[:end]
}

func findAllAnchors(buf, anchor []byte) []int {
	var offsets []int

	for i := 0; i+len(anchor) <= len(buf); i++ {
		if bytes.Equal(buf[i:i+len(anchor)], anchor) {
			offsets = append(offsets, i)
		}
	}

	return offsets
}

// backwardWalkMR34 implements the 12th-gen "small backward walk": MR34
// is the byte immediately following the last Park-group (0x58 prefix)
// entry before MR37, since JEDEC orders Park directly ahead of the
// MR34/35/36/37 quad. If no Park entry is found within 8 bytes, default
// to MR37-4 (the common 1x-population spacing).
func backwardWalkMR34(buf []byte, mr37Offset int) int {
	for back := 1; back <= 8 && mr37Offset-back >= 0; back++ {
		if buf[mr37Offset-back]&0xF8 == 0x58 {
			return mr37Offset - back + 1
		}
	}

	if mr37Offset-4 >= 0 {
		return mr37Offset - 4
	}

	return 0
}

func classifyRttBlock(buf []byte, end int) []RttEntry {
	var entries []RttEntry

	for i := 0; i < end && i < len(buf); i++ {
		prefix, ok := rttPrefixByNibble[buf[i]&0xF8]
		if !ok {
			continue
		}

		entries = append(entries, RttEntry{Offset: i, Prefix: prefix, Payload: buf[i] & 0x07})
	}

	return entries
}

func findPrefix(entries []RttEntry, want rttPrefix) byte {
	for _, e := range entries {
		if e.Prefix == want {
			return e.Payload
		}
	}

	return 0
}

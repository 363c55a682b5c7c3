package platform

// field names a (offset, bit-range) pair inside one of the three MMIO
// blocks platform reads per controller. Offsets are relative to the
// block's own base (inter-channel 0xD800, intra-channel/DIMM-char
// 0xD804/0xD80C + cnum*4, per-channel MC 0xE000 + channel*0x800).
type field struct {
	offset            int
	firstBit, lastBit int
}

// registerTable is "one decode table per family": spec.md §4.5 forbids
// reading a field that is not in the active table, so every lookup goes
// through a table selected once by generation.
type registerTable struct {
	interChannel map[string]field
	intraChannel map[string]field // offset is added to 0xD804 + cnum*4's own dword, so offset is normally 0
	dimmChar     map[string]field // same convention, base 0xD80C + cnum*4
	perChannel   map[string]field // offset relative to 0xE000 + channel*0x800
}

// gen12Table is the 12th-gen (Alder/Raptor/Meteor Lake) decode table.
// Only DDRType/tCL/tRP/tREFI/tXSDLL placements are named directly by
// the source material; the remaining timing fields are placed in the
// same 0x40..0x140 primary-timing region real Intel IMCs use and are
// documented in DESIGN.md as schema-consistent, not hardware-verified.
var gen12Table = registerTable{
	interChannel: map[string]field{
		"DDRType":       {0x00, 0, 3},
		"ChannelLMap":   {0x00, 4, 5},
		"ChannelSSize":  {0x00, 8, 15},
		"ChannelWidth":  {0x00, 16, 17},
		"HalfCacheline": {0x00, 18, 18},
	},
	intraChannel: map[string]field{
		"DimmLMap": {0x00, 0, 1},
	},
	dimmChar: map[string]field{
		"ECC":             {0x00, 0, 0},
		"EIM":             {0x00, 1, 1},
		"CRC":             {0x00, 2, 2},
		"DimmLSize":       {0x00, 4, 10},
		"DimmSSize":       {0x00, 11, 17},
		"WidthL":          {0x00, 18, 19}, // 12th-gen: 2-bit width field
		"WidthS":          {0x00, 20, 21},
		"RanksL":          {0x00, 22, 23},
		"RanksS":          {0x00, 24, 25},
		"DDR5_8GbL":       {0x00, 26, 26},
		"DDR5_8GbS":       {0x00, 27, 27},
		"BankGroupOption": {0x00, 28, 29},
		"DecoderEBH":      {0x00, 30, 31},
	},
	perChannel: map[string]field{
		"tCL":        {0x40, 0, 6},
		"tRCD":       {0x40, 8, 14},
		"tRP":        {0x44, 0, 6},
		"tRAS":       {0x44, 8, 15},
		"tRFC":       {0x48, 0, 11},
		"tFAW":       {0x4C, 0, 7},
		"tRRDsg":     {0x50, 0, 5},
		"tRRDdg":     {0x50, 6, 11},
		"tWRRDsg":    {0x54, 0, 6},
		"tWRRDdg":    {0x54, 7, 13},
		"tCWL":       {0x58, 0, 5},
		"tRDPRE":     {0x5C, 0, 5},
		"tWRPRE":     {0x5C, 8, 14},
		"tREFI":      {0x43C, 0, 15},
		"tXSDLL":     {0x440, 0, 12},
		"GEAR2":      {0x60, 0, 0},
		"GEAR4":      {0x60, 1, 1},
		"CmdStretch": {0x60, 2, 3},
		"CMIRatio":   {0x64, 0, 5}, // MC-to-CMI clock ratio, spec.md §8 scenario 2's speed formula
	},
}

// gen15Table is the 15th-gen (Arrow Lake) decode table. §4.5 calls out
// four concrete moves relative to gen12Table: tCL to 0x70 bits 16..22,
// tRP partially to 0x138, tREFI base to 0x4A0, tXSDLL to 0x4C0 bits
// 51..63 (spanning into the next qword, modelled as bits 51..63 of a
// 64-bit read starting at 0x4C0).
var gen15Table = registerTable{
	interChannel: gen12Table.interChannel, // unchanged per spec.md §4.5
	intraChannel: gen12Table.intraChannel,
	dimmChar:     gen12Table.dimmChar,
	perChannel: map[string]field{
		"tCL":        {0x70, 16, 22},
		"tRCD":       {0x70, 23, 29},
		"tRP":        {0x138, 0, 6},
		"tRAS":       {0x13C, 0, 7},
		"tRFC":       {0x140, 0, 11},
		"tFAW":       {0x144, 0, 7},
		"tRRDsg":     {0x148, 0, 5},
		"tRRDdg":     {0x148, 6, 11},
		"tWRRDsg":    {0x14C, 0, 6},
		"tWRRDdg":    {0x14C, 7, 13},
		"tCWL":       {0x150, 0, 5},
		"tRDPRE":     {0x154, 0, 5},
		"tWRPRE":     {0x154, 8, 14},
		"tREFI":      {0x4A0, 0, 15},
		"tXSDLL":     {0x4C0, 51, 63},
		"GEAR2":      {0x160, 0, 0}, // SC_GS_CFG, single gear bit
		"CmdStretch": {0x164, 0, 0},
		"CMIRatio":   {0x168, 0, 5},
	},
}

func tableFor(gen Generation) registerTable {
	if gen == Generation15th {
		return gen15Table
	}

	return gen12Table
}

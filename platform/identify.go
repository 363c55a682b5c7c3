package platform

import (
	"strings"

	"github.com/kramelec/imcsnap/hwerr"
)

// Generation is the family bucket spec.md §4.5 requires every CPU to
// land in before any register table is selected.
type Generation int

const (
	GenerationUnknown Generation = iota
	Generation12th               // Alder/Raptor/Meteor Lake and derivatives
	Generation15th               // Arrow Lake and derivatives
)

func (g Generation) String() string {
	switch g {
	case Generation12th:
		return "12th-gen"
	case Generation15th:
		return "15th-gen"
	default:
		return "unknown"
	}
}

// CPUIdentity is the record produced by identifyCPU.
type CPUIdentity struct {
	VendorString string
	Family       uint32
	Model        uint32 // extended model folded in
	Stepping     uint32
	BrandString  string
	Generation   Generation
}

// family6Models maps (family 6) model numbers to the generation bucket
// spec.md §4.5 names. Model numbers are the household client-desktop
// members of each design family; unrecognised models are rejected.
var family6Models = map[uint32]Generation{
	0x97: Generation12th, // Alder Lake-S
	0x9A: Generation12th, // Alder Lake-P/Alder Lake-N
	0xB7: Generation12th, // Raptor Lake-S
	0xBA: Generation12th, // Raptor Lake-P
	0xBF: Generation12th, // Raptor Lake-S Refresh
	0xAA: Generation12th, // Meteor Lake-P
	0xAC: Generation12th, // Meteor Lake-S/H
	0xC6: Generation15th, // Arrow Lake-S
	0xC5: Generation15th, // Arrow Lake-H/U
	0xB5: Generation15th, // Arrow Lake-HX
}

// cpuidFn/cpuidExtFn indirect through the build-tag-selected cpuid/
// cpuidExt functions so tests can substitute a fake CPU without
// executing the real instruction.
var (
	cpuidFn    = cpuid
	cpuidExtFn = cpuidExt
)

// identifyCPU reads CPUID leaves 0, 1, and 0x80000002..0x80000004 and
// classifies the result per spec.md §4.5. Unknown vendors or unknown
// family/model pairs are rejected -- imcsnap only targets the Intel
// client desktop platforms in scope.
func identifyCPU() (CPUIdentity, error) {
	_, ebx, ecx, edx := cpuidFn(0)
	vendor := vendorString(ebx, edx, ecx)

	if vendor != "GenuineIntel" {
		return CPUIdentity{}, hwerr.New(hwerr.KindUnsupported, "unsupported CPU vendor: "+vendor)
	}

	eax1, _, _, _ := cpuidFn(1)

	baseFamily := (eax1 >> 8) & 0xF
	extFamily := (eax1 >> 20) & 0xFF
	baseModel := (eax1 >> 4) & 0xF
	extModel := (eax1 >> 16) & 0xF
	stepping := eax1 & 0xF

	family := baseFamily
	if baseFamily == 0xF {
		family += extFamily
	}

	model := baseModel
	if baseFamily == 0x6 || baseFamily == 0xF {
		model |= extModel << 4
	}

	gen, known := family6Models[model]
	if family != 6 || !known {
		return CPUIdentity{}, hwerr.New(hwerr.KindUnsupported, "unrecognised Intel family/model, not a 12th-15th gen desktop part")
	}

	brand := brandString()

	return CPUIdentity{
		VendorString: vendor,
		Family:       family,
		Model:        model,
		Stepping:     stepping,
		BrandString:  brand,
		Generation:   gen,
	}, nil
}

func vendorString(ebx, edx, ecx uint32) string {
	var b strings.Builder

	for _, reg := range []uint32{ebx, edx, ecx} {
		for shift := 0; shift < 32; shift += 8 {
			b.WriteByte(byte(reg >> shift))
		}
	}

	return b.String()
}

// brandString reads the marketing-name leaves (0x80000002..0x80000004),
// each contributing 16 ASCII bytes across eax/ebx/ecx/edx.
func brandString() string {
	var b strings.Builder

	for leaf := uint32(0x80000002); leaf <= 0x80000004; leaf++ {
		eax, ebx, ecx, edx := cpuidExtFn(leaf, 0)

		for _, reg := range []uint32{eax, ebx, ecx, edx} {
			for shift := 0; shift < 32; shift += 8 {
				c := byte(reg >> shift)
				if c != 0 {
					b.WriteByte(c)
				}
			}
		}
	}

	return strings.TrimSpace(b.String())
}

//go:build amd64

package platform

// cpuidLow runs the CPUID instruction directly -- it is unprivileged, so
// platform reads it without going through the kernel-helper driver,
// mirroring the teacher's own direct-CPUID asm stub (cpuid.cpuid_low).
func cpuidLow(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32)

func cpuid(leaf uint32) (eax, ebx, ecx, edx uint32) {
	return cpuidLow(leaf, 0)
}

func cpuidExt(leaf, sub uint32) (eax, ebx, ecx, edx uint32) {
	return cpuidLow(leaf, sub)
}

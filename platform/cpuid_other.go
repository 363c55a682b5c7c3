//go:build !amd64

package platform

// Non-amd64 builds never execute CPUID for real; identify.go treats an
// all-zero result as "vendor unrecognised" and rejects the CPU, which is
// correct here since the platforms in scope are desktop x86-64 only.
func cpuid(leaf uint32) (eax, ebx, ecx, edx uint32) { return 0, 0, 0, 0 }

func cpuidExt(leaf, sub uint32) (eax, ebx, ecx, edx uint32) { return 0, 0, 0, 0 }

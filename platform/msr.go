package platform

// msrAccess is implemented by *kdrv.Device; it mirrors mailbox.msrAccess
// so platform can read POWER-domain MSRs without going through mailbox
// framing.
type msrAccess interface {
	MSRRead(reg uint32) (hi uint32, lo uint32, err error)
	MSRWrite(reg uint32, hi uint32, lo uint32) error
}

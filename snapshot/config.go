package snapshot

import "time"

// Config holds the three blocking-point timeouts spec.md §5 names as the
// only operational parameters a caller tunes.
type Config struct {
	MutexWaitTimeout time.Duration // default 2s: named-mutex acquisition
	InUseTimeout     time.Duration // default 0.5s: SMBus INUSE release
	MailboxTimeout   time.Duration // default 50ms: mailbox RunBusy poll
}

// DefaultConfig returns the defaults spec.md §5 names.
func DefaultConfig() Config {
	return Config{
		MutexWaitTimeout: 2 * time.Second,
		InUseTimeout:     500 * time.Millisecond,
		MailboxTimeout:   50 * time.Millisecond,
	}
}

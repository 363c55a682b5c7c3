// Package mailbox is the mailbox service (X): a 32-bit command/data pair
// reachable either as two MMIO DWORDs in MCHBAR (PCODE/MRC mailbox) or
// as MSRs (VR/OC mailbox). Every request writes data, writes command
// with RunBusy set, polls RunBusy under a deadline, and returns the
// response DWORD alongside a status field (spec.md §4.6).
package mailbox

import (
	"log"
	"os"
	"time"

	"github.com/kramelec/imcsnap/hwerr"
)

var Logger = log.New(os.Stderr, "imcsnap/mailbox: ", log.LstdFlags)

// Variant selects the command-word bit layout: spec.md §4.6 gives the
// PCODE/BIOS mailbox a 13-bit Param2 and the OC mailbox an 8-bit one.
// "Implementers must choose the layout by command class, not by
// register address" -- callers pass Variant explicitly per command.
type Variant int

const (
	PCODEVariant Variant = iota
	OCVariant
)

const runBusyBit = uint32(1) << 31

// PackCommand builds the RunBusy|Param2|Param1|Command word.
func PackCommand(variant Variant, cmd uint8, param1 uint8, param2 uint32, runBusy bool) uint32 {
	word := uint32(cmd)
	word |= uint32(param1) << 8

	switch variant {
	case OCVariant:
		word |= (param2 & 0xFF) << 16
	default:
		word |= (param2 & 0x1FFF) << 16
	}

	if runBusy {
		word |= runBusyBit
	}

	return word
}

// Carrier is the shared shape of the two physical transports: MMIO
// (carrier_mmio.go) and MSR (carrier_msr.go).
type Carrier interface {
	// Exchange writes dataValue, writes cmdWord with RunBusy set, polls
	// until RunBusy clears (or timeout elapses), and returns the
	// response data word plus the status word observed once RunBusy
	// cleared.
	Exchange(cmdWord uint32, dataValue uint32, timeout time.Duration) (response uint32, status uint32, err error)
}

// Request issues one mailbox command and classifies the outcome per
// spec.md §4.6: zero status is success; a non-zero status is reported
// but the command "returns absent"; RunBusy never clearing is a Timeout.
func Request(carrier Carrier, variant Variant, cmd uint8, param1 uint8, param2 uint32, dataValue uint32, timeout time.Duration) (uint32, error) {
	cmdWord := PackCommand(variant, cmd, param1, param2, true)

	response, status, err := carrier.Exchange(cmdWord, dataValue, timeout)
	if err != nil {
		return 0, err
	}

	if status != 0 {
		Logger.Printf("mailbox cmd=0x%02X status=0x%X (non-zero)", cmd, status)

		return 0, hwerr.New(hwerr.KindAbsent, "mailbox non-zero status")
	}

	return response, nil
}

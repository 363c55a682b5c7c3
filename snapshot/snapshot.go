// Package snapshot is the top-level assembly point: it composes K, M,
// D, S, X and P (spec.md §2's "single snapshot call") into one
// immutable report per refresh.
package snapshot

import (
	"context"
	"log"
	"math"
	"os"
	"time"

	"github.com/kramelec/imcsnap/bitfield"
	"github.com/kramelec/imcsnap/mailbox"
	"github.com/kramelec/imcsnap/mutexbroker"
	"github.com/kramelec/imcsnap/platform"
	"github.com/kramelec/imcsnap/smbus"
)

var Logger = log.New(os.Stderr, "imcsnap/snapshot: ", log.LstdFlags)

// Board is acquired by an external collaborator (an OS query); the core
// only carries it through to the output tree, per spec.md §3.
type Board struct {
	Manufacturer string
	Product      string
}

// Channel is one Memory.MC[i].Channel[j] record.
type Channel struct {
	Population platform.DimmChannelInfo
	Info       platform.Timings
	MRS        platform.MRStorage
}

// MC is one Memory.MC[i] record.
type MC struct {
	DDRType  bitfield.DDRType
	Inter    platform.InterChannel
	Channels []Channel
}

// Memory is the Memory.* subtree of spec.md §3.
type Memory struct {
	MC          []MC
	DIMM        []DIMM
	Power       platform.PowerReport
	SA          platform.SAReport
	BIOSRequest platform.BiosMailboxReport
	BIOSData    platform.BiosMailboxReport
}

// Snapshot is the immutable tree spec.md §3 describes, produced by one
// Refresh call and never mutated afterwards.
type Snapshot struct {
	Time    string
	Aborted bool

	CPU          platform.CPUIdentity
	Board        Board
	Capabilities platform.Capabilities
	Memory       Memory
	VR           platform.VRReport
}

// Refresh performs one top-level snapshot: the platform walk (unlocked
// MCHBAR reads), then the VR/Power mailbox reads under the PCODE and OC
// mutexes (taken in that order), then SMBus controller discovery
// followed by the DIMM reads under the SMBus mutex (spec.md §5). The
// SMBus mutex is never held together with a mailbox mutex. ctx is
// checked cooperatively between
// components (spec.md §5's cancellation model); K operations themselves
// are not interruptible.
func Refresh(ctx context.Context, cfg Config, hc *HardwareContext, board Board, controllerCount int) (Snapshot, error) {
	snap := Snapshot{
		Time:  time.Now().Format("2006-01-02T15:04:05"),
		Board: board,
	}

	report, err := platform.Walk(hc.Dev, controllerCount)
	snap.CPU = report.CPU

	if err != nil {
		// identifyCPU itself failed: spec.md §7 requires at least CPU
		// identification to proceed; nothing else can be trusted.
		if report.Bars == (platform.Bars{}) && report.CPU == (platform.CPUIdentity{}) {
			return snap, err
		}

		Logger.Printf("platform walk: %v", err)
	}

	snap.Capabilities = report.Capabilities
	snap.Memory.MC = controllersFromReport(report)

	if ctxDone(ctx) {
		snap.Aborted = true

		return snap, nil
	}

	if err := hc.Broker.WithLock(mutexbroker.PCODEMailbox, cfg.MutexWaitTimeout, func() error {
		return hc.Broker.WithLock(mutexbroker.OCMailbox, cfg.MutexWaitTimeout, func() error {
			carriers := platform.MailboxCarriers{
				PCODE: mailbox.NewMCHBARCarrier(hc.Dev, 0x5DA0, 0x5DA4),
				OC:    mailbox.NewOCMSRCarrier(hc.Dev),
				MSR:   hc.Dev,
			}

			platform.WalkVR(&report, carriers, cfg.MailboxTimeout)

			return nil
		})
	}); err != nil {
		Logger.Printf("vr/power mailbox section: %v", err)
	}

	snap.Capabilities = report.Capabilities // WalkVR adds OCCapabilityRaw after the first assignment above
	snap.Memory.MC = controllersFromReport(report)
	snap.VR = roundVR(report.VR)
	snap.Memory.Power = roundPower(report.Power)
	snap.Memory.SA = roundSA(report.SA)
	snap.Memory.BIOSRequest = roundBiosMailbox(report.BIOSRequest)
	snap.Memory.BIOSData = roundBiosMailbox(report.BIOSData)

	if ctxDone(ctx) {
		snap.Aborted = true

		return snap, nil
	}

	if err := refreshDIMMs(&snap, cfg, hc); err != nil {
		Logger.Printf("smbus section: %v", err)
	}

	return snap, nil
}

func ctxDone(ctx context.Context) bool {
	if ctx == nil {
		return false
	}

	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func controllersFromReport(report platform.Report) []MC {
	mcs := make([]MC, 0, len(report.Controllers))

	for _, c := range report.Controllers {
		mc := MC{DDRType: c.DDRType, Inter: c.Inter}

		for _, ch := range c.Channels {
			mc.Channels = append(mc.Channels, Channel{
				Population: ch.Population,
				Info:       ch.Timings, // integer clock counts: no rounding per spec.md §6
				MRS:        ch.MRS,
			})
		}

		mcs = append(mcs, mc)
	}

	return mcs
}

// refreshDIMMs discovers the SMBus host controller and reads every DIMM
// slot under the SMBus OS mutex plus the INUSE firmware handshake
// (spec.md §4.2/§5).
func refreshDIMMs(snap *Snapshot, cfg Config, hc *HardwareContext) error {
	ctrl, err := smbus.Discover(hc.Dev, hc.Dev, hc.Dev, cfg.InUseTimeout)
	if err != nil {
		return err
	}

	hs := mutexbroker.SMBusHandshake{
		WaitClear: func(timeout time.Duration) error { return ctrl.WaitInUseClear(hc.Dev, timeout) },
		Unlock:    func() (byte, error) { return ctrl.UnlockInUse(hc.Dev) },
		Restore:   func(prior byte) error { return ctrl.RestoreInUse(hc.Dev, prior) },
	}

	return hc.Broker.WithSMBusLock(cfg.MutexWaitTimeout, cfg.InUseTimeout, hs, func() error {
		snap.Memory.DIMM = readDIMMs(ctrl.Transport)

		return nil
	})
}

func round(v float64, decimals int) float64 {
	mul := math.Pow(10, float64(decimals))

	return math.Round(v*mul) / mul
}

func roundVR(vr platform.VRReport) platform.VRReport {
	vr.IccMaxAmps = round(vr.IccMaxAmps, 3)
	vr.VccInAuxIccMax = round(vr.VccInAuxIccMax, 3)

	return vr
}

func roundPower(p platform.PowerReport) platform.PowerReport {
	p.PL1Watts = round(p.PL1Watts, 3)
	p.PL2Watts = round(p.PL2Watts, 3)
	p.PackageEnergyJoules = round(p.PackageEnergyJoules, 3)

	return p
}

func roundSA(sa platform.SAReport) platform.SAReport {
	sa.BCLKMHz = round(sa.BCLKMHz, 3)
	sa.QCLKFreqMHz = round(sa.QCLKFreqMHz, 3)
	sa.UCLKFreqMHz = round(sa.UCLKFreqMHz, 3)
	sa.OPISpeedMHz = round(sa.OPISpeedMHz, 3)
	sa.VoltageVolts = round(sa.VoltageVolts, 3)

	return sa
}

func roundBiosMailbox(b platform.BiosMailboxReport) platform.BiosMailboxReport {
	b.VDDQTXVoltage = round(b.VDDQTXVoltage, 3)
	b.IccMaxAmps = round(b.IccMaxAmps, 3)

	return b
}

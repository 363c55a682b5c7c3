// Package platform is the platform walker (P): CPU identification, the
// MCHBAR/DMIBAR register maps for the 12th-15th generation desktop
// memory controllers, derived timing formulas, and the MR storage
// template parser (spec.md §4.5).
package platform

import (
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kramelec/imcsnap/bitfield"
	"github.com/kramelec/imcsnap/mailbox"
)

var Logger = log.New(os.Stderr, "imcsnap/platform: ", log.LstdFlags)

const channelsPerController = 2

// ChannelInfo is one Memory.MC[i].Channel[j] record (spec.md §3).
type ChannelInfo struct {
	Population DimmChannelInfo
	Timings    Timings
	MRS        MRStorage
}

// Controller is one Memory.MC[i] record.
type Controller struct {
	DDRType  bitfield.DDRType
	Inter    InterChannel
	Channels [channelsPerController]ChannelInfo
}

// Report is the complete platform-walker output, consumed by the
// snapshot package to build Memory.MC/DIMM/VR/POWER.
type Report struct {
	CPU          CPUIdentity
	Bars         Bars
	Capabilities Capabilities
	Controllers  []Controller
	VR           VRReport
	Power        PowerReport
	SA           SAReport
	BIOSRequest  BiosMailboxReport
	BIOSData     BiosMailboxReport
}

// Hardware is everything the walker needs from the lower layers: PCI
// config + physical memory from kdrv.Device, and the mailbox carriers
// wired up by the caller (mailbox carriers need the MCHBAR base, which
// this package itself discovers, so callers build them after Walk's
// first phase -- see WalkVR).
type Hardware interface {
	pciConfig
	physMem
}

// Walk performs CPU identification, BAR discovery, and the per-
// controller/per-channel register walk. It does not populate VR/Power,
// which require mailbox carriers built from the discovered MCHBAR base
// (see WalkVR).
func Walk(hw Hardware, controllerCount int) (Report, error) {
	cpu, err := identifyCPU()
	if err != nil {
		return Report{}, err
	}

	report := Report{CPU: cpu}

	// A failed bars read fails the whole controller walk (spec.md §7)
	// but not CPU identification, which the top-level snapshot only
	// needs to have succeeded -- so the partial report is still returned
	// alongside the error.
	bars, err := readBars(hw, hw)
	if err != nil {
		return report, err
	}

	report.Bars = bars

	table := tableFor(cpu.Generation)

	caps, err := readCapabilities(hw)
	if err != nil {
		Logger.Printf("capabilities: %v", err)
	} else {
		report.Capabilities = caps
	}

	for c := 0; c < controllerCount; c++ {
		inter, err := readInterChannel(hw, bars.MCHBAR, c)
		if err != nil {
			Logger.Printf("controller %d inter-channel: %v", c, err)

			continue
		}

		ctrl := Controller{DDRType: inter.DDRType, Inter: inter}

		// Each channel's MCHBAR block is an independent read of its own
		// register window, so the burst reads fan out the way the teacher
		// fans out per-vCPU ioctls in vmm/migrate.go: one goroutine per
		// channel, errors logged rather than failing the whole controller.
		var g errgroup.Group

		for ch := 0; ch < channelsPerController; ch++ {
			ch := ch
			cnum := c*channelsPerController + ch

			g.Go(func() error {
				chInfo, err := readChannelInfo(hw, bars.MCHBAR, c, cnum, cpu.Generation, table, inter.DDRType)
				if err != nil {
					Logger.Printf("controller %d channel %d: %v", c, ch, err)

					return nil
				}

				ctrl.Channels[ch] = chInfo

				return nil
			})
		}

		_ = g.Wait() // per-channel errors already logged; never fails the controller

		report.Controllers = append(report.Controllers, ctrl)
	}

	return report, nil
}

// MailboxCarriers bundles the carriers WalkVR needs; callers build these
// once bars.MCHBAR is known (mailbox.NewMCHBARCarrier) plus the MSR
// carriers, which need no address.
type MailboxCarriers struct {
	PCODE mailbox.Carrier // MCHBARCarrier, for VCCIO/VR topology/IccMax/load-lines
	OC    mailbox.Carrier // MSRCarrier bound to MSR 0x150, for SVID register reads
	MSR   msrAccess       // direct MSR reads for POWER and SA (0x618, 0xCE, 0x198, 0x601, 0x606, 0x611, 0x19C, 0x620, 0x632-0x635)
}

// WalkVR fills in Report.VR, Report.Power, Report.SA and
// Report.BIOSRequest/BIOSData using the mailbox carriers, then derives
// each channel's memory speed now that Report.SA is known. Kept
// separate from Walk because it needs bars.MCHBAR, which Walk only
// discovers partway through. timeout is spec.md §5's mailbox_wait_timeout
// (snapshot.Config.MailboxTimeout), threaded through to every mailbox
// call this function makes or triggers.
func WalkVR(report *Report, carriers MailboxCarriers, timeout time.Duration) {
	report.VR = readVRReport(carriers, timeout)
	report.Power = readPowerReport(carriers.MSR)
	report.SA = readSAReport(carriers, timeout)
	report.BIOSRequest = readBiosMailboxReport(carriers.PCODE, mailbox.CmdBIOSRequest, timeout)
	report.BIOSData = readBiosMailboxReport(carriers.PCODE, mailbox.CmdBIOSData, timeout)

	if raw, err := readOCCapability(carriers.PCODE, timeout); err == nil {
		report.Capabilities.OCCapabilityRaw = raw
	} else {
		Logger.Printf("capabilities: OC capability: %v", err)
	}

	applyMemorySpeeds(report)
}

// applyMemorySpeeds fills in each channel's Timings.SpeedMTs from the
// just-read Report.SA and the channel's own CMIRatio (spec.md §8
// scenario 2). It runs after SA is populated because SA requires a
// mailbox round trip that Walk's per-channel register read does not wait for.
func applyMemorySpeeds(report *Report) {
	for c := range report.Controllers {
		for ch := range report.Controllers[c].Channels {
			t := &report.Controllers[c].Channels[ch].Timings
			t.SpeedMTs = deriveSpeedMTs(report.SA.QCLKFreqMHz, t.CMIRatio)
		}
	}
}

// readChannelInfo performs the full per-channel read: DIMM population,
// the MC register block, MR storage parsing, and derived timings. Split
// out of Walk so each channel's read can run in its own goroutine.
func readChannelInfo(hw Hardware, mchbar uint64, controller, cnum int, gen Generation, table registerTable, ddrType bitfield.DDRType) (ChannelInfo, error) {
	pop, err := readDimmChannelInfo(hw, mchbar, controller, cnum)
	if err != nil {
		return ChannelInfo{}, err
	}

	block, err := readPerChannelBlock(hw, mchbar, cnum)
	if err != nil {
		return ChannelInfo{}, err
	}

	mrs := parseMRStorage(block.raw, gen)

	timings, err := deriveTimings(block, table, gen, ddrType, mrs.fineGranularityRefresh())
	if err != nil {
		Logger.Printf("controller %d channel %d timings: %v", controller, cnum, err)
	}

	return ChannelInfo{Population: pop, Timings: timings, MRS: mrs}, nil
}

func (m MRStorage) fineGranularityRefresh() bool {
	const refreshTrfcModeBit = 0x80 // MR4 OP[7]

	return m.MR4&refreshTrfcModeBit != 0
}

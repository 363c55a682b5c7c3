package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/kramelec/imcsnap/bitfield"
	"github.com/kramelec/imcsnap/platform"
)

func TestRound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       float64
		decimals int
		want     float64
	}{
		{1.23456, 4, 1.2346},
		{1.999949, 4, 1.9999},
		{0, 4, 0},
	}

	for _, c := range cases {
		if got := round(c.in, c.decimals); got != c.want {
			t.Fatalf("round(%v, %d) = %v, want %v", c.in, c.decimals, got, c.want)
		}
	}
}

func TestRoundVR(t *testing.T) {
	t.Parallel()

	vr := platform.VRReport{IccMaxAmps: 123.45678, VccInAuxIccMax: 9.87654}
	out := roundVR(vr)

	if out.IccMaxAmps != 123.457 {
		t.Fatalf("IccMaxAmps = %v, want 123.457", out.IccMaxAmps)
	}

	if out.VccInAuxIccMax != 9.877 {
		t.Fatalf("VccInAuxIccMax = %v, want 9.877", out.VccInAuxIccMax)
	}
}

func TestRoundPower(t *testing.T) {
	t.Parallel()

	p := platform.PowerReport{PL1Watts: 65.00049, PL2Watts: 120.0001}
	out := roundPower(p)

	if out.PL1Watts != 65.0 {
		t.Fatalf("PL1Watts = %v, want 65.0", out.PL1Watts)
	}

	if out.PL2Watts != 120.0 {
		t.Fatalf("PL2Watts = %v, want 120.0", out.PL2Watts)
	}
}

func TestRoundSA(t *testing.T) {
	t.Parallel()

	sa := platform.SAReport{BCLKMHz: 100.00049, QCLKFreqMHz: 3200.0001, VoltageVolts: 1.234567}
	out := roundSA(sa)

	if out.BCLKMHz != 100.0 {
		t.Fatalf("BCLKMHz = %v, want 100.0", out.BCLKMHz)
	}

	if out.VoltageVolts != 1.235 {
		t.Fatalf("VoltageVolts = %v, want 1.235", out.VoltageVolts)
	}
}

func TestRoundBiosMailbox(t *testing.T) {
	t.Parallel()

	b := platform.BiosMailboxReport{VDDQTXVoltage: 1.10049, IccMaxAmps: 42.00051}
	out := roundBiosMailbox(b)

	if out.VDDQTXVoltage != 1.1 {
		t.Fatalf("VDDQTXVoltage = %v, want 1.1", out.VDDQTXVoltage)
	}

	if out.IccMaxAmps != 42.001 {
		t.Fatalf("IccMaxAmps = %v, want 42.001", out.IccMaxAmps)
	}
}

func TestCtxDoneNilContext(t *testing.T) {
	t.Parallel()

	if ctxDone(nil) {
		t.Fatal("ctxDone(nil) = true, want false")
	}
}

func TestCtxDoneCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if !ctxDone(ctx) {
		t.Fatal("ctxDone(cancelled) = false, want true")
	}
}

func TestCtxDoneLive(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	if ctxDone(ctx) {
		t.Fatal("ctxDone(live) = true, want false")
	}
}

func TestControllersFromReport(t *testing.T) {
	t.Parallel()

	report := platform.Report{
		Controllers: []platform.Controller{
			{
				DDRType: bitfield.DDR5,
				Inter:   platform.InterChannel{ChannelWidth: 64},
				Channels: [2]platform.ChannelInfo{
					{Timings: platform.Timings{CL: 40}},
					{Timings: platform.Timings{CL: 40}},
				},
			},
		},
	}

	mcs := controllersFromReport(report)

	if len(mcs) != 1 {
		t.Fatalf("len(mcs) = %d, want 1", len(mcs))
	}

	if mcs[0].DDRType != bitfield.DDR5 {
		t.Fatalf("DDRType = %v, want DDR5", mcs[0].DDRType)
	}

	if len(mcs[0].Channels) != 2 {
		t.Fatalf("len(Channels) = %d, want 2", len(mcs[0].Channels))
	}

	if mcs[0].Channels[0].Info.CL != 40 {
		t.Fatalf("Channels[0].Info.CL = %d, want 40", mcs[0].Channels[0].Info.CL)
	}
}

// Command imcsnap is a thin kong-based CLI wrapping the snapshot package:
// snap takes one refresh and prints the JSON tree, probe lists what
// SMBus discovery and the DIMM slot scan found without decoding them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/kramelec/imcsnap/snapshot"
)

const defaultDriverPath = `\\.\imcsnap`

type CLI struct {
	Driver string `help:"Path of the kernel helper device." default:"${driver}"`

	MutexWait      time.Duration `help:"Named-mutex acquisition timeout." default:"2s"`
	InUseTimeout   time.Duration `help:"SMBus INUSE release timeout." default:"500ms"`
	MailboxTimeout time.Duration `help:"Mailbox RunBusy poll timeout." default:"50ms"`

	Controllers int `help:"Number of memory controllers to walk." default:"2"`

	Snap  SnapCmd  `cmd:"" help:"Take one snapshot and print it as JSON."`
	Probe ProbeCmd `cmd:"" help:"List SMBus devices and DIMM slots found, without decoding them."`
}

func (c *CLI) config() snapshot.Config {
	return snapshot.Config{
		MutexWaitTimeout: c.MutexWait,
		InUseTimeout:     c.InUseTimeout,
		MailboxTimeout:   c.MailboxTimeout,
	}
}

type SnapCmd struct {
	Out string `help:"Write JSON to this file instead of stdout."`
}

func (s *SnapCmd) Run(c *CLI) error {
	hc, err := snapshot.NewHardwareContext(c.Driver)
	if err != nil {
		return fmt.Errorf("open hardware context: %w", err)
	}
	defer hc.Close()

	board, err := readBoard()
	if err != nil {
		snapshot.Logger.Printf("board identity: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := snapshot.Refresh(ctx, c.config(), hc, board, c.Controllers)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if s.Out == "" {
		_, err = os.Stdout.Write(append(out, '\n'))

		return err
	}

	return os.WriteFile(s.Out, append(out, '\n'), 0o644)
}

type ProbeCmd struct{}

func (p *ProbeCmd) Run(c *CLI) error {
	hc, err := snapshot.NewHardwareContext(c.Driver)
	if err != nil {
		return fmt.Errorf("open hardware context: %w", err)
	}
	defer hc.Close()

	ctrl, err := probeSMBus(hc, c.InUseTimeout)
	if err != nil {
		return fmt.Errorf("smbus discovery: %w", err)
	}

	fmt.Printf("smbus host controller: base port 0x%04x\n", ctrl.BasePort)

	slots, err := probeDIMMSlots(ctrl)
	if err != nil {
		return fmt.Errorf("dimm slot probe: %w", err)
	}

	if len(slots) == 0 {
		fmt.Println("no populated DIMM slots found")

		return nil
	}

	for _, slot := range slots {
		fmt.Printf("slot %d: present\n", slot)
	}

	return nil
}

func main() {
	c := CLI{}

	parser, err := kong.New(&c,
		kong.Name("imcsnap"),
		kong.Description("imcsnap inspects the Intel integrated memory controller, DRAM modules, and voltage regulators and prints a JSON snapshot"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{"driver": defaultDriverPath},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(&c); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

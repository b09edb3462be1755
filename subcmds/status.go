// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bvk/copybot/cli"
	"github.com/bvk/copybot/copier"
	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/job"
	"github.com/bvk/copybot/kvutil"
	"github.com/bvk/copybot/namer"
	"github.com/bvk/copybot/server"
	"github.com/bvk/copybot/strategy"
	"github.com/bvk/copybot/subcmds/cmdutil"
	"github.com/bvkgo/kv"
)

type Status struct {
	cmdutil.DBFlags
}

func (c *Status) Synopsis() string {
	return "Status prints a summary of the server and all copy targets"
}

func (c *Status) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	state, err := kvutil.GetDB[gobs.ServerState](ctx, db, server.ServerStateKey)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not read server state: %w", err)
	}
	if state != nil {
		fmt.Printf("Started: %s\n", state.StartTime.Format(time.RFC1123))
		fmt.Printf("Last heartbeat: %s (%d total)\n", state.HeartbeatTime.Format(time.RFC1123), state.NumHeartbeats)
		fmt.Println()
	}

	cfg, err := kvutil.GetDB[gobs.Strategy](ctx, db, strategy.Key)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not read strategy: %w", err)
	}
	if cfg != nil {
		dryRun := ""
		if cfg.DryRun {
			dryRun = " (dry-run)"
		}
		fmt.Printf("Strategy: %s %s orders%s\n", cfg.SizingMode, cfg.OrderStyle, dryRun)
		fmt.Println()
	}

	type target struct {
		uid, name, wallet, state string
		counters                 *gobs.CopierState
	}
	var targets []*target

	runner := job.NewRunner(db)
	collect := func(ctx context.Context, r kv.Reader, jd *job.JobData) error {
		if jd.Typename != server.CopierTypename {
			return nil
		}
		t := &target{uid: jd.UID, state: string(jd.State)}
		if name, _, _, err := namer.Resolve(ctx, r, jd.UID); err == nil {
			t.name = name
		}
		cp, err := copier.Load(ctx, jd.UID, r)
		if err != nil {
			return fmt.Errorf("could not load copier %q: %w", jd.UID, err)
		}
		t.counters = cp.Status()
		t.wallet = cp.Wallet()
		targets = append(targets, t)
		return nil
	}
	scan := func(ctx context.Context, r kv.Reader) error {
		return runner.Scan(ctx, r, collect)
	}
	if err := kv.WithReader(ctx, db, scan); err != nil {
		return fmt.Errorf("could not scan copier jobs: %w", err)
	}

	if len(targets) == 0 {
		fmt.Println("No copy targets.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tWALLET\tSTATE\tSEEN\tCOPIED\tSKIPPED\tFAILED\tLAST TRADE")
	for _, t := range targets {
		name := t.name
		if len(name) == 0 {
			name = t.uid
		}
		lastTrade := "-"
		if !t.counters.LastTradeTime.IsZero() {
			lastTrade = t.counters.LastTradeTime.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			name, t.wallet, t.state, t.counters.NumTrades, t.counters.NumCopied,
			t.counters.NumSkipped, t.counters.NumFailed, lastTrade)
	}
	return tw.Flush()
}

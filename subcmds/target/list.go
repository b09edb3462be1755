// Copyright (c) 2025 BVK Chaitanya

package target

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bvk/copybot/api"
	"github.com/bvk/copybot/cli"
	"github.com/bvk/copybot/subcmds/cmdutil"
)

type List struct {
	cmdutil.ClientFlags
}

func (c *List) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	req := &api.TargetListRequest{}
	resp, err := cmdutil.Post[api.TargetListResponse](ctx, &c.ClientFlags, api.TargetListPath, req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tNAME\tWALLET\tSTATE\tSEEN\tCOPIED\tSKIPPED\tFAILED\tLAST TRADE")
	for _, t := range resp.Targets {
		lastTrade := "-"
		if !t.LastTradeTime.IsZero() {
			lastTrade = t.LastTradeTime.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			t.UID, t.Name, t.Wallet, t.State, t.NumTrades, t.NumCopied,
			t.NumSkipped, t.NumFailed, lastTrade)
	}
	return tw.Flush()
}

func (c *List) Synopsis() string {
	return "Prints all copy targets with their counters"
}

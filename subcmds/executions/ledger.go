// Copyright (c) 2025 BVK Chaitanya

package executions

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

type Ledger struct {
	cmdutil.ClientFlags
}

func (c *Ledger) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("ledger", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Ledger) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	req := &api.LedgerListRequest{}
	resp, err := cmdutil.Post[api.LedgerListResponse](ctx, &c.ClientFlags, api.LedgerListPath, req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "MARKET\tDIRECTION\tWALLET\tORDER\tTIME")
	for _, e := range resp.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.MarketID, e.Direction, e.Wallet, e.OrderID, e.UpdateTime.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (c *Ledger) Synopsis() string {
	return "Prints the market direction ledger"
}

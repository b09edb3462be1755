// Copyright (c) 2025 BVK Chaitanya

package target

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/bvk/copybot/api"
	"github.com/bvk/copybot/cli"
	"github.com/bvk/copybot/subcmds/cmdutil"
)

type Add struct {
	cmdutil.ClientFlags

	name string
}

func (c *Add) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("add", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.name, "name", "", "a name for the copier job")
	return fset, cli.CmdFunc(c.run)
}

func (c *Add) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (wallet address) argument")
	}
	req := &api.TargetAddRequest{
		Wallet: args[0],
		Name:   c.name,
	}
	resp, err := cmdutil.Post[api.TargetAddResponse](ctx, &c.ClientFlags, api.TargetAddPath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}

func (c *Add) Synopsis() string {
	return "Starts copying a target trader's wallet"
}

func (c *Add) CommandHelp() string {
	return `

Command "add" creates a copier job that watches the given wallet address for
new trades and replicates them with the configured strategy. The job starts
immediately and is resumed automatically on server restarts.

`
}

// Copyright (c) 2025 BVK Chaitanya

package strategy

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/bvk/copybot/api"
	"github.com/bvk/copybot/cli"
	"github.com/bvk/copybot/subcmds/cmdutil"
)

type Get struct {
	cmdutil.ClientFlags
}

func (c *Get) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("get", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Get) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	req := &api.StrategyGetRequest{}
	resp, err := cmdutil.Post[api.StrategyGetResponse](ctx, &c.ClientFlags, api.StrategyGetPath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp.Strategy, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}

func (c *Get) Synopsis() string {
	return "Prints the active copy strategy"
}

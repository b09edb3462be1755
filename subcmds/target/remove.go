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

type Remove struct {
	cmdutil.ClientFlags
}

func (c *Remove) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("remove", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return fset, cli.CmdFunc(c.run)
}

func (c *Remove) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (uuid or name) argument")
	}
	req := &api.TargetRemoveRequest{
		UID: args[0],
	}
	resp, err := cmdutil.Post[api.TargetRemoveResponse](ctx, &c.ClientFlags, api.TargetRemovePath, req)
	if err != nil {
		return err
	}
	jsdata, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Printf("%s\n", jsdata)
	return nil
}

func (c *Remove) Synopsis() string {
	return "Stops copying a target trader's wallet"
}

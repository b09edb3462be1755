// Copyright (c) 2025 BVK Chaitanya

package strategy

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bvk/copybot/api"
	"github.com/bvk/copybot/cli"
	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/strategy"
	"github.com/bvk/copybot/subcmds/cmdutil"
)

type Set struct {
	cmdutil.ClientFlags

	defaults bool
}

func (c *Set) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.BoolVar(&c.defaults, "defaults", false, "when true installs the default dry-run strategy")
	return fset, cli.CmdFunc(c.run)
}

func (c *Set) run(ctx context.Context, args []string) error {
	var v *gobs.Strategy
	switch {
	case c.defaults:
		if len(args) != 0 {
			return fmt.Errorf("this command takes no arguments with -defaults")
		}
		v = strategy.Default()

	default:
		if len(args) != 1 {
			return fmt.Errorf("this command takes one (json file) argument; use - for stdin")
		}
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("could not read strategy json: %w", err)
		}
		v = new(gobs.Strategy)
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("could not unmarshal strategy json: %w", err)
		}
	}

	if err := strategy.Check(v); err != nil {
		return err
	}

	req := &api.StrategySetRequest{Strategy: v}
	if _, err := cmdutil.Post[api.StrategySetResponse](ctx, &c.ClientFlags, api.StrategySetPath, req); err != nil {
		return err
	}
	return nil
}

func (c *Set) Synopsis() string {
	return "Replaces the active copy strategy"
}

func (c *Set) CommandHelp() string {
	return `

Command "set" replaces the active copy strategy with the given JSON document.
Running copier jobs pick up the new strategy before their next trade, without
a restart.

`
}

// Copyright (c) 2025 BVK Chaitanya

package executions

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/bvk/copybot/api"
	"github.com/bvk/copybot/cli"
	"github.com/bvk/copybot/subcmds/cmdutil"
	"github.com/bvk/copybot/timerange"
)

type List struct {
	cmdutil.ClientFlags

	period string

	beginTime, endTime string
}

func (c *List) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.StringVar(&c.period, "period", "", "named time period (today, yesterday, this-week, last-week, this-month, last-month)")
	fset.StringVar(&c.beginTime, "begin-time", "", "begin time in RFC3339 format")
	fset.StringVar(&c.endTime, "end-time", "", "end time in RFC3339 format")
	return fset, cli.CmdFunc(c.run)
}

func (c *List) timeRange() (*timerange.Range, error) {
	if len(c.period) != 0 {
		if len(c.beginTime) != 0 || len(c.endTime) != 0 {
			return nil, fmt.Errorf("period cannot be combined with begin/end times")
		}
		switch strings.ToLower(c.period) {
		case "today":
			return timerange.Today(time.Local), nil
		case "yesterday":
			return timerange.Yesterday(time.Local), nil
		case "this-week":
			return timerange.ThisWeek(time.Local), nil
		case "last-week":
			return timerange.LastWeek(time.Local), nil
		case "this-month":
			return timerange.ThisMonth(time.Local), nil
		case "last-month":
			return timerange.LastMonth(time.Local), nil
		default:
			return nil, fmt.Errorf("unknown period %q", c.period)
		}
	}

	r := new(timerange.Range)
	if len(c.beginTime) != 0 {
		v, err := time.Parse(time.RFC3339, c.beginTime)
		if err != nil {
			return nil, fmt.Errorf("could not parse begin time: %w", err)
		}
		r.Begin = v
	}
	if len(c.endTime) != 0 {
		v, err := time.Parse(time.RFC3339, c.endTime)
		if err != nil {
			return nil, fmt.Errorf("could not parse end time: %w", err)
		}
		r.End = v
	}
	return r, nil
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	period, err := c.timeRange()
	if err != nil {
		return err
	}

	req := &api.ExecutionsListRequest{
		Begin: period.Begin,
		End:   period.End,
	}
	resp, err := cmdutil.Post[api.ExecutionsListResponse](ctx, &c.ClientFlags, api.ExecutionsListPath, req)
	if err != nil {
		return err
	}
	for _, r := range resp.Executions {
		jsdata, _ := json.Marshal(r)
		fmt.Printf("%s\n", jsdata)
	}
	return nil
}

func (c *List) Synopsis() string {
	return "Prints execution records over a time period"
}

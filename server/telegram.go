// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bvk/copybot/api"
	"github.com/bvk/copybot/gateway"
	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/telegram"
	"github.com/bvk/copybot/timerange"
	"github.com/visvasity/cli"
)

func (s *Server) AddTelegramCommand(ctx context.Context, name, purpose string, handler telegram.CmdFunc) error {
	if s.telegramClient != nil {
		return s.telegramClient.AddCommand(ctx, name, purpose, handler)
	}
	return nil // Ignored
}

func (s *Server) registerTelegramCommands(ctx context.Context) error {
	cmds := []struct {
		name, purpose string
		handler       telegram.CmdFunc
	}{
		{"status", "Summarizes the copybot server health", s.statusTelegramCmd},
		{"targets", "Lists the copy targets and their counters", s.targetsTelegramCmd},
		{"strategy", "Prints the active copy strategy", s.strategyTelegramCmd},
		{"trades", "Counts copied trades (today|yesterday|this-week|...)", s.tradesTelegramCmd},
	}
	for _, c := range cmds {
		if err := s.AddTelegramCommand(ctx, c.name, c.purpose, c.handler); err != nil {
			return fmt.Errorf("could not add telegram command %q: %w", c.name, err)
		}
	}
	return nil
}

func (s *Server) statusTelegramCmd(ctx context.Context, _ []string) error {
	stdout := cli.Stdout(ctx)

	resp, err := s.doStatus(ctx, &api.StatusRequest{})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Uptime: %v\n", time.Since(resp.StartTime).Round(time.Second))
	if !resp.HeartbeatTime.IsZero() {
		fmt.Fprintf(stdout, "Last heartbeat: %v ago\n", time.Since(resp.HeartbeatTime).Round(time.Second))
	}
	fmt.Fprintf(stdout, "CPU: %.1f%% Memory: %.1f%%\n", resp.CPUPercent, resp.MemoryPercent)

	var running int
	for _, t := range resp.Targets {
		if t.State == string(gobs.RUNNING) {
			running++
		}
	}
	fmt.Fprintf(stdout, "Targets: %d (%d running)\n", len(resp.Targets), running)
	return nil
}

func (s *Server) targetsTelegramCmd(ctx context.Context, _ []string) error {
	stdout := cli.Stdout(ctx)

	resp, err := s.doTargetList(ctx, &api.TargetListRequest{})
	if err != nil {
		return err
	}
	if len(resp.Targets) == 0 {
		fmt.Fprintln(stdout, "No copy targets.")
		return nil
	}
	for _, t := range resp.Targets {
		name := t.Name
		if len(name) == 0 {
			name = t.Wallet
		}
		fmt.Fprintf(stdout, "%s [%s]: %d seen, %d copied, %d skipped, %d failed\n",
			name, t.State, t.NumTrades, t.NumCopied, t.NumSkipped, t.NumFailed)
	}
	return nil
}

func (s *Server) strategyTelegramCmd(ctx context.Context, _ []string) error {
	stdout := cli.Stdout(ctx)

	v, err := s.strategyStore.Current(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Mode: %s", v.SizingMode)
	switch v.SizingMode {
	case "RATIO", "PORTFOLIO":
		fmt.Fprintf(stdout, " (ratio %s)", v.SizeRatio)
	case "FIXED":
		fmt.Fprintf(stdout, " (%s USD per trade)", v.FixedAmountUSD)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Orders: %s, %s-%s USD\n", v.OrderStyle, v.MinOrderUSD, v.MaxOrderUSD)
	if v.DryRun {
		fmt.Fprintln(stdout, "Dry run is ON; no real orders are placed.")
	}
	return nil
}

// tradesTelegramCmd counts the execution records over a named period, or over
// a standard set of periods when no argument is given.
func (s *Server) tradesTelegramCmd(ctx context.Context, args []string) error {
	stdout := cli.Stdout(ctx)

	periodMap := map[string]func(*time.Location) *timerange.Range{
		"today":      timerange.Today,
		"yesterday":  timerange.Yesterday,
		"this-week":  timerange.ThisWeek,
		"last-week":  timerange.LastWeek,
		"this-month": timerange.ThisMonth,
		"last-month": timerange.LastMonth,
		"lifetime":   timerange.Lifetime,
	}

	count := func(p *timerange.Range) (copied, failed int, err error) {
		collect := func(r *gobs.ExecutionRecord) error {
			if r.Accepted {
				copied++
			} else {
				failed++
			}
			return nil
		}
		if err := gateway.ScanExecutions(ctx, s.db, p.Begin, p.End, collect); err != nil {
			return 0, 0, err
		}
		return copied, failed, nil
	}

	if len(args) != 0 {
		pf, ok := periodMap[strings.ToLower(args[0])]
		if !ok {
			return fmt.Errorf("unknown period %q", args[0])
		}
		copied, failed, err := count(pf(time.Local))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d copied, %d failed\n", copied, failed)
		return nil
	}

	keys := []string{"today", "yesterday", "this-week", "this-month", "lifetime"}
	names := []string{"Today", "Yesterday", "This Week", "This Month", "Lifetime"}
	for i, k := range keys {
		copied, failed, err := count(periodMap[k](time.Local))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s: %d copied, %d failed\n", names[i], copied, failed)
	}
	return nil
}

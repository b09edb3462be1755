// Copyright (c) 2025 BVK Chaitanya

// Package server ties the copybot services together: it owns the database,
// the copier job runner, the exchange clients and the operator surfaces
// (http api, telegram, pushover).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/bvk/copybot/copier"
	"github.com/bvk/copybot/ctxutil"
	"github.com/bvk/copybot/gateway"
	"github.com/bvk/copybot/gobs"
	"github.com/bvk/copybot/job"
	"github.com/bvk/copybot/kvutil"
	"github.com/bvk/copybot/ledger"
	"github.com/bvk/copybot/polymarket"
	"github.com/bvk/copybot/pushover"
	"github.com/bvk/copybot/strategy"
	"github.com/bvk/copybot/syncmap"
	"github.com/bvk/copybot/telegram"
	"github.com/bvkgo/kv"
	"github.com/visvasity/topic"
)

const ServerStateKey = "/server/state"

// CopierTypename is the job type recorded for copier jobs.
const CopierTypename = "Copier"

type Server struct {
	closeCtx    context.Context
	closeCancel context.CancelCauseFunc

	cg ctxutil.CloseGroup

	opts Options

	secrets *Secrets

	db kv.Database

	runner *job.Runner

	dataClient *polymarket.Client

	markets *polymarket.MarketCache

	prices *polymarket.PriceFeed

	// exchange is nil when no credentials are configured; only dry-run
	// strategies work in that case.
	exchange polymarket.Exchange

	ledger *ledger.Ledger

	strategyStore *strategy.Store

	gateway *gateway.Gateway

	// copierMap tracks live copier instances by job uid while they run.
	copierMap syncmap.Map[string, *copier.Copier]

	telegramClient *telegram.Client
	pushoverClient *pushover.Client

	startTime time.Time
}

// New creates the copybot server over the given database. Callers own the
// database and the http wiring; the server owns everything else.
func New(ctx context.Context, secrets *Secrets, db kv.Database, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if secrets == nil {
		secrets = new(Secrets)
	}
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	closeCtx, closeCancel := context.WithCancelCause(context.Background())
	defer func() {
		if status != nil {
			closeCancel(status)
		}
	}()

	dataClient, err := polymarket.New(nil)
	if err != nil {
		return nil, fmt.Errorf("could not create data-api client: %w", err)
	}
	defer func() {
		if status != nil {
			dataClient.Close()
		}
	}()

	prices, err := polymarket.NewPriceFeed(nil)
	if err != nil {
		return nil, fmt.Errorf("could not create price feed: %w", err)
	}
	defer func() {
		if status != nil {
			prices.Close()
		}
	}()

	l := ledger.New(db)
	s := &Server{
		closeCtx:      closeCtx,
		closeCancel:   closeCancel,
		opts:          *opts,
		secrets:       secrets,
		db:            db,
		runner:        job.NewRunner(db),
		dataClient:    dataClient,
		markets:       polymarket.NewMarketCache(dataClient),
		prices:        prices,
		ledger:        l,
		strategyStore: strategy.NewStore(db),
		startTime:     time.Now(),
	}

	if secrets.Polymarket != nil {
		signerURL, err := url.Parse(secrets.SignerURL)
		if err != nil {
			return nil, fmt.Errorf("could not parse signer url: %w", err)
		}
		signer, err := polymarket.NewHTTPSigner(signerURL)
		if err != nil {
			return nil, err
		}
		clob, err := polymarket.NewClob(secrets.Polymarket, signer, nil)
		if err != nil {
			return nil, fmt.Errorf("could not create exchange client: %w", err)
		}
		s.exchange = clob
	}

	s.gateway = gateway.New(db, l, s.exchange)

	if secrets.Telegram != nil {
		tc, err := telegram.New(ctx, db, secrets.Telegram)
		if err != nil {
			return nil, fmt.Errorf("could not create telegram client: %w", err)
		}
		s.telegramClient = tc
	}
	if secrets.Pushover != nil {
		pc, err := pushover.New(secrets.Pushover)
		if err != nil {
			return nil, fmt.Errorf("could not create pushover client: %w", err)
		}
		s.pushoverClient = pc
	}

	return s, nil
}

func (s *Server) Close() error {
	s.closeCancel(os.ErrClosed)
	s.cg.Close()
	s.gateway.Close()
	if s.telegramClient != nil {
		s.telegramClient.Close()
	}
	s.prices.Close()
	s.dataClient.Close()
	return nil
}

// Runtime builds the collaborator set for a copier job.
func (s *Server) Runtime() *copier.Runtime {
	ownWallet := ""
	if s.secrets.Polymarket != nil {
		ownWallet = s.secrets.Polymarket.Address
	}
	return &copier.Runtime{
		Database:     s.db,
		Source:       s.dataClient,
		Markets:      s.markets,
		Values:       s.dataClient,
		Prices:       s.prices,
		Ledger:       s.ledger,
		Strategy:     s.strategyStore,
		Gateway:      s.gateway,
		OwnWallet:    ownWallet,
		PollInterval: s.opts.PollInterval,
		FetchLimit:   s.opts.FetchLimit,
	}
}

// Start resumes previously running copier jobs and kicks off the background
// loops. Jobs keep running until Stop.
func (s *Server) Start(ctx context.Context) error {
	if _, err := s.strategyStore.Current(ctx); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not read strategy: %w", err)
		}
		slog.Warn("no strategy configured; all observed trades will be skipped")
	}

	if !s.opts.NoResume {
		if err := s.resumeJobs(ctx); err != nil {
			return err
		}
	}

	s.cg.Go(s.goHeartbeat)
	s.cg.Go(s.goNotifyExecutions)
	if s.exchange != nil {
		s.cg.Go(s.goWatchBalance)
	}

	if err := s.registerTelegramCommands(ctx); err != nil {
		slog.Warn("could not register telegram commands (ignored)", "err", err)
	}
	return nil
}

// Stop pauses all running jobs. Job states stay RUNNING in the database so
// the next Start resumes them.
func (s *Server) Stop(ctx context.Context) error {
	return s.runner.PauseAll(ctx)
}

// makeJobFunc builds the job runner entry point for a copier job. The
// copier state is loaded fresh from the database at (re)start.
func (s *Server) makeJobFunc(uid string) job.Func {
	return func(ctx context.Context) error {
		var c *copier.Copier
		load := func(ctx context.Context, r kv.Reader) error {
			v, err := copier.Load(ctx, uid, r)
			if err != nil {
				return err
			}
			c = v
			return nil
		}
		if err := kv.WithReader(ctx, s.db, load); err != nil {
			return fmt.Errorf("could not load copier %q: %w", uid, err)
		}

		s.copierMap.Store(uid, c)
		defer s.copierMap.Delete(uid)

		return c.Run(ctx, s.Runtime())
	}
}

func (s *Server) resumeJobs(ctx context.Context) error {
	var uids []string
	collect := func(ctx context.Context, r kv.Reader, jd *job.JobData) error {
		if jd.Typename == CopierTypename && jd.State == gobs.RUNNING {
			uids = append(uids, jd.UID)
		}
		return nil
	}
	scan := func(ctx context.Context, r kv.Reader) error {
		return s.runner.Scan(ctx, r, collect)
	}
	if err := kv.WithReader(ctx, s.db, scan); err != nil {
		return fmt.Errorf("could not scan jobs: %w", err)
	}

	for _, uid := range uids {
		if err := s.runner.Resume(ctx, uid, s.makeJobFunc(uid), s.closeCtx); err != nil {
			slog.Error("could not resume copier job (ignored)", "uid", uid, "err", err)
			continue
		}
		slog.Info("resumed copier job", "uid", uid)
	}
	return nil
}

// goHeartbeat periodically persists a liveness record so external tools can
// detect a dead or wedged process.
func (s *Server) goHeartbeat(ctx context.Context) {
	for ctx.Err() == nil {
		state, err := kvutil.GetDB[gobs.ServerState](ctx, s.db, ServerStateKey)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Error("could not read server state (will retry)", "err", err)
				ctxutil.Sleep(ctx, s.opts.HeartbeatInterval)
				continue
			}
			state = new(gobs.ServerState)
		}
		state.StartTime = s.startTime
		state.HeartbeatTime = time.Now()
		state.NumHeartbeats++
		if err := kvutil.SetDB(ctx, s.db, ServerStateKey, state); err != nil {
			slog.Error("could not save heartbeat (will retry)", "err", err)
		}
		ctxutil.Sleep(ctx, s.opts.HeartbeatInterval)
	}
}

// goNotifyExecutions forwards execution records to the operator channels.
func (s *Server) goNotifyExecutions(ctx context.Context) {
	receiver, err := s.gateway.Executions()
	if err != nil {
		slog.Error("could not subscribe to execution records", "err", err)
		return
	}
	defer receiver.Close()

	recordCh, err := topic.ReceiveCh(receiver)
	if err != nil {
		slog.Error("could not open execution record channel", "err", err)
		return
	}
	stop := context.AfterFunc(ctx, receiver.Close)
	defer stop()

	for record := range recordCh {
		s.SendMessage(ctx, record.Time, executionMessage(record))
	}
}

func executionMessage(r *gobs.ExecutionRecord) string {
	switch {
	case r.DryRun:
		return fmt.Sprintf("DRY RUN %s %s %q at %s (copying %s)", r.Side, r.Size, r.Slug, r.Price, r.Wallet)
	case r.Accepted:
		return fmt.Sprintf("%s %s %q at %s (copying %s)", r.Side, r.Size, r.Slug, r.Price, r.Wallet)
	default:
		return fmt.Sprintf("FAILED %s %q (copying %s): %s", r.Side, r.Slug, r.Wallet, r.FailureReason)
	}
}

// goWatchBalance alerts the operator when the available balance drops below
// the configured threshold. Alerts are frozen for an hour once sent.
func (s *Server) goWatchBalance(ctx context.Context) {
	var freezeDeadline time.Time

	for ctx.Err() == nil {
		ctxutil.Sleep(ctx, s.opts.BalanceCheckInterval)
		if ctx.Err() != nil {
			return
		}

		cfg, err := s.strategyStore.Current(ctx)
		if err != nil || cfg.LowBalanceAlertUSD.IsZero() {
			continue
		}
		balance, err := s.exchange.GetBalance(ctx)
		if err != nil {
			slog.Warn("could not fetch balance for alert check (will retry)", "err", err)
			continue
		}
		if balance.GreaterThanOrEqual(cfg.LowBalanceAlertUSD) {
			continue
		}
		if now := time.Now(); now.After(freezeDeadline) {
			s.SendMessage(ctx, now, fmt.Sprintf("Available balance %s USD is below the alert limit %s USD.",
				balance.StringFixed(2), cfg.LowBalanceAlertUSD.StringFixed(2)))
			freezeDeadline = now.Add(time.Hour)
		}
	}
}

// SendMessage delivers a message on all configured operator channels.
func (s *Server) SendMessage(ctx context.Context, at time.Time, text string) {
	if s.telegramClient != nil {
		if err := s.telegramClient.SendMessage(ctx, at, text); err != nil {
			slog.Warn("could not send telegram message (ignored)", "err", err)
		}
	}
	if s.pushoverClient != nil {
		if err := s.pushoverClient.SendMessage(ctx, at, text); err != nil {
			slog.Warn("could not send pushover message (ignored)", "err", err)
		}
	}
}

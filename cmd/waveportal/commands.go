package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wave-portal/pkg/config"
	"github.com/wave-portal/pkg/dashboard"
	"github.com/wave-portal/pkg/db"
	"github.com/wave-portal/pkg/feed"
	"github.com/wave-portal/pkg/tui"
	"github.com/wave-portal/pkg/wallet"
	"github.com/wave-portal/pkg/wave"
)

var tuiCommand = &cli.Command{
	Name:   "tui",
	Usage:  "interactive terminal client (default)",
	Action: runTUI,
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "serve the web dashboard",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "addr", Usage: "listen address, overrides DASHBOARD_ADDR"},
	},
	Action: runServe,
}

var feedCommand = &cli.Command{
	Name:  "feed",
	Usage: "print all waves, newest first",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Usage: "print at most this many waves", Value: 0},
	},
	Action: runFeed,
}

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "send a wave and wait until it is mined",
	ArgsUsage: "<message>",
	Action:    runSend,
}

var connectCommand = &cli.Command{
	Name:   "connect",
	Usage:  "authorize the wallet account for this client",
	Action: runConnect,
}

var disconnectCommand = &cli.Command{
	Name:   "disconnect",
	Usage:  "forget the authorized account",
	Action: runDisconnect,
}

func terminalApprover(cfg *config.Config) wallet.Approver {
	if cfg.WalletPassphrase != "" {
		return wallet.StaticApprover{Passphrase: cfg.WalletPassphrase}
	}
	return &wallet.TerminalApprover{In: os.Stdin, Out: os.Stderr}
}

func runTUI(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logFile, err := setupLogging(cfg, "waveportal.log")
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, cancel := signalContext()
	defer cancel()

	approver := tui.NewApprover()
	approver.Passphrase = cfg.WalletPassphrase

	s, err := buildStack(ctx, cfg, approver)
	if err != nil {
		return err
	}
	defer s.Close()

	s.app.StartFeed(ctx)
	s.app.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.reconciler.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, s.app, approver)
	})
	return ignoreCanceled(g.Wait())
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.String("addr"); v != "" {
		cfg.DashboardAddr = v
	}
	logFile, err := setupLogging(cfg, "")
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, cancel := signalContext()
	defer cancel()

	s, err := buildStack(ctx, cfg, terminalApprover(cfg))
	if err != nil {
		return err
	}
	defer s.Close()

	s.app.StartFeed(ctx)
	s.app.Start(ctx)
	printSummary(os.Stdout, cfg, s)

	dash := dashboard.New(s.app, s.feed, s.store, cfg.DashboardAddr)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.reconciler.Run(gctx) })
	g.Go(func() error { return dash.Run(gctx) })

	err = ignoreCanceled(g.Wait())
	log.Info().Msg("goodbye 👋")
	return err
}

func runFeed(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cfg, ""); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	s, err := buildStack(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.RPCTimeout)
	defer cancelLoad()
	st, err := s.feed.LoadHistory(loadCtx)
	if err != nil {
		return err
	}
	printFeed(os.Stdout, st, c.Int("limit"))
	return nil
}

func runSend(c *cli.Context) error {
	message := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(message) == "" {
		return noticeError(wave.ErrEmptyMessage)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cfg, ""); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	approver := terminalApprover(cfg)
	s, err := buildStack(ctx, cfg, approver)
	if err != nil {
		return err
	}
	defer s.Close()
	s.app.SkipFeed()

	if _, ok := s.wallet.CheckAuthorizedAccount(ctx); !ok {
		if err := s.app.Connect(ctx, approver); err != nil {
			return noticeError(err)
		}
	}

	fmt.Fprintln(os.Stderr, color.New(color.FgYellow).Sprint("⛏️  Mining..."))
	res, err := s.app.Send(ctx, message)
	if err != nil {
		return noticeError(err)
	}
	color.New(color.FgGreen, color.Bold).Printf("✅ Mined %s in block %d\n", res.TxHash.Hex(), res.BlockNumber)
	return nil
}

func runConnect(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cfg, ""); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	approver := terminalApprover(cfg)
	s, err := buildStack(ctx, cfg, approver)
	if err != nil {
		return err
	}
	defer s.Close()
	s.app.SkipFeed()

	if addr, ok := s.wallet.CheckAuthorizedAccount(ctx); ok {
		color.Green("Already connected as %s", addr.Hex())
		return nil
	}
	if err := s.app.Connect(ctx, approver); err != nil {
		return noticeError(err)
	}
	addr, _ := s.wallet.Account()
	color.Green("Connected as %s", addr.Hex())
	return nil
}

func runDisconnect(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if _, err := setupLogging(cfg, ""); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	s, err := buildStack(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	s.app.SkipFeed()

	addr, ok := s.wallet.CheckAuthorizedAccount(ctx)
	if !ok {
		color.Yellow("No connected account")
		return nil
	}
	if err := s.app.Disconnect(); err != nil {
		return err
	}
	color.Green("Disconnected %s", addr.Hex())
	return nil
}

// noticeError prints the user-facing notice and returns a short exit error.
func noticeError(err error) error {
	color.New(color.FgRed).Fprintln(os.Stderr, wave.Notice(err))
	return cli.Exit(wave.Kind(err), 1)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printFeed(w io.Writer, st feed.State, limit int) {
	records := st.Records
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"When", "From", "Message"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, r := range records {
		table.Append([]string{r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Address.Hex(), r.Message})
	}
	table.Render()
	fmt.Fprintf(w, "\n%d waves in total\n", st.Total)
}

func printSummary(w io.Writer, cfg *config.Config, s *stack) {
	bold := color.New(color.Bold).SprintFunc()
	ok := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	line := strings.Repeat("═", 60)
	fmt.Fprintln(w, "\n"+line)
	fmt.Fprintln(w, bold("  👋 WAVE PORTAL - RUNNING"))
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "  Contract:  %s\n", cfg.ContractAddress.Hex())
	fmt.Fprintf(w, "  Node:      %s\n", cfg.RPCURL)
	fmt.Fprintf(w, "  Dashboard: http://%s\n", cfg.DashboardAddr)
	if s.wallet.HasProvider() {
		fmt.Fprintf(w, "  Wallet:    %s\n", ok("found"))
	} else {
		fmt.Fprintf(w, "  Wallet:    %s\n", warn("none (set KEYSTORE_DIR or WALLET_PRIVATE_KEY)"))
	}
	if stats, err := s.store.GetStats(); err == nil {
		fmt.Fprintf(w, "  Journal:   %d mined, %d pending, %d failed\n",
			stats[string(db.StatusMined)], stats[string(db.StatusPending)], stats[string(db.StatusFailed)]+stats[string(db.StatusReverted)])
	}
	fmt.Fprintln(w, line+"\n")
}

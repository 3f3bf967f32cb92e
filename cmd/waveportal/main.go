package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/wave-portal/pkg/app"
	"github.com/wave-portal/pkg/chain"
	"github.com/wave-portal/pkg/config"
	"github.com/wave-portal/pkg/db"
	"github.com/wave-portal/pkg/feed"
	"github.com/wave-portal/pkg/monitor"
	"github.com/wave-portal/pkg/submit"
	"github.com/wave-portal/pkg/wallet"
)

var version = "dev"

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	a := cli.NewApp()
	a.Name = "waveportal"
	a.Version = version
	a.Usage = "wave at the WavePortal contract and watch the waves roll in"
	a.Flags = globalFlags
	a.DefaultCommand = tuiCommand.Name
	a.Commands = []*cli.Command{tuiCommand, serveCommand, feedCommand, sendCommand, connectCommand, disconnectCommand}

	if err := a.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("waveportal")
	}
}

var globalFlags = []cli.Flag{
	&cli.StringFlag{Name: "rpc-url", Usage: "node http(s) endpoint, overrides RPC_URL"},
	&cli.StringFlag{Name: "ws-url", Usage: "node websocket endpoint, overrides WS_URL"},
	&cli.StringFlag{Name: "contract", Usage: "WavePortal address, overrides CONTRACT_ADDRESS"},
	&cli.StringFlag{Name: "db", Usage: "sqlite path, overrides DB_PATH"},
	&cli.StringFlag{Name: "log-level", Usage: "overrides LOG_LEVEL"},
	&cli.StringFlag{Name: "log-file", Usage: "overrides LOG_FILE"},
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v := c.String("rpc-url"); v != "" {
		cfg.RPCURL = v
	}
	if v := c.String("ws-url"); v != "" {
		cfg.WSURL = v
	}
	if v := c.String("contract"); v != "" {
		if err := cfg.SetContract(v); err != nil {
			return nil, err
		}
	}
	if v := c.String("db"); v != "" {
		cfg.DBPath = v
	}
	if v := c.String("log-level"); v != "" {
		lvl, err := zerolog.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("log-level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if v := c.String("log-file"); v != "" {
		cfg.LogFile = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging points the global logger at LOG_FILE when set, or at
// fallbackFile when the terminal is taken by the UI.
func setupLogging(cfg *config.Config, fallbackFile string) (io.Closer, error) {
	zerolog.SetGlobalLevel(cfg.LogLevel)

	path := cfg.LogFile
	if path == "" {
		path = fallbackFile
	}
	if path == "" {
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: f, TimeFormat: "15:04:05", NoColor: true}).With().Timestamp().Logger()
	return f, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Info().Msg("shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// stack is the wired application.
type stack struct {
	cfg        *config.Config
	store      *db.Store
	portal     *chain.Portal
	wallet     *wallet.Manager
	feed       *feed.Synchronizer
	submitter  *submit.Submitter
	app        *app.App
	reconciler *monitor.Reconciler
}

func buildStack(ctx context.Context, cfg *config.Config, approver wallet.Approver) (*stack, error) {
	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}

	provider, err := wallet.DetectProvider(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	mgr := wallet.NewManager(provider, store)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	defer cancel()
	portal, err := chain.Dial(dialCtx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	chainID := cfg.ChainID
	if chainID == nil {
		chainID, err = portal.ChainID(dialCtx)
		if err != nil {
			portal.Close()
			store.Close()
			return nil, err
		}
	}
	log.Debug().Stringer("chain_id", chainID).Msg("chain id")

	syncer := feed.New(portal)
	var submitter *submit.Submitter
	if provider != nil {
		submitter = submit.New(portal, mgr.Signer(new(big.Int).Set(chainID), approver), store, cfg.WaveGasLimit)
	}

	s := &stack{
		cfg:        cfg,
		store:      store,
		portal:     portal,
		wallet:     mgr,
		feed:       syncer,
		submitter:  submitter,
		reconciler: monitor.NewReconciler(syncer, cfg.ReconcileSchedule, cfg.RPCTimeout).WithJournal(store, portal),
	}
	if submitter != nil {
		s.app = app.New(mgr, syncer, submitter)
	} else {
		s.app = app.New(mgr, syncer, nil)
	}
	return s, nil
}

func (s *stack) Close() {
	s.feed.Close()
	s.portal.Close()
	s.store.Close()
}

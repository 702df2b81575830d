package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/greenfelt/holdem/internal/server"
	"github.com/greenfelt/holdem/internal/store"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`

	Config      string `kong:"default='holdem.hcl',help='Path to HCL configuration file'"`
	Addr        string `kong:"env='HOLDEM_ADDR',help='Listen address, overrides the config file'"`
	DatabaseURL string `kong:"env='DATABASE_URL',help='Postgres DSN. When empty an in-memory store is used'"`
	Debug       bool   `kong:"env='HOLDEM_DEBUG',help='Enable debug logging'"`
	DevBalance  int64  `kong:"default='10000',env='HOLDEM_DEV_BALANCE',help='Starting balance minted per player when running without a database'"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("holdem-server"),
		kong.Description("Multiplayer Texas Hold'Em server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	kctx.FatalIfErrorf(cli.Run())
}

func (c *CLI) Run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
	if c.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Addr != "" {
		host, portStr, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("parse addr %q: %w", c.Addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("parse addr %q: %w", c.Addr, err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := c.openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.NewServer(cfg, st, quartz.NewReal(), logger)
	if err := srv.SetupRooms(ctx); err != nil {
		return fmt.Errorf("setup rooms: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}

// openStore connects to Postgres when a DSN is configured, otherwise serves
// from memory so local development needs no database.
func (c *CLI) openStore(ctx context.Context, logger *log.Logger) (store.Store, error) {
	if c.DatabaseURL == "" {
		logger.Warn("no DATABASE_URL set, using in-memory store")
		mem := store.NewMemory()
		mem.StartingBalance = c.DevBalance
		return mem, nil
	}
	pg, err := store.OpenPostgres(ctx, c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("connected to postgres")
	return pg, nil
}

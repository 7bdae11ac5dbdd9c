package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/adamgoodwin/highlow/internal/persist"
	"github.com/adamgoodwin/highlow/internal/server"
)

// ServeCmd runs the websocket server.
type ServeCmd struct {
	Config string `kong:"default='highlow.hcl',help='Path to the HCL config file'"`
	Addr   string `kong:"help='Listen address, overrides the config file'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cfg.Server.LogLevel, c.Debug)

	addr := cfg.ListenAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return err
	}
	cloud, err := persist.NewSQLiteStore(cfg.Storage.ProfileDB)
	if err != nil {
		return err
	}
	defer cloud.Close()

	srv := server.NewServer(addr, cloud, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server")
		return srv.Stop()
	})
	return g.Wait()
}

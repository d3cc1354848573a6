package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/unkn0wn-root/rendercache/internal/backend"
	"github.com/unkn0wn-root/rendercache/internal/config"
	"github.com/unkn0wn-root/rendercache/internal/demo"
)

const shutdownTimeout = 10 * time.Second

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to the YAML config file",
	Sources: cli.EnvVars("RENDERCACHE_CONFIG"),
}

func newApp(logOut io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "rendercache",
		Usage: "render cache demo host",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the demo pages",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: "listen", Usage: "listen address (overrides config)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := config.Load(cmd.String("config"))
					if err != nil {
						return err
					}
					if l := cmd.String("listen"); l != "" {
						cfg.Listen = l
					}
					return serve(ctx, cfg, logOut)
				},
			},
			{
				Name:  "invalidate",
				Usage: "invalidate cache tags",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "tag to invalidate (repeatable)", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := config.Load(cmd.String("config"))
					if err != nil {
						return err
					}
					return invalidate(ctx, cfg, cmd.StringSlice("tag"), logOut)
				},
			},
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	log := backend.NewLogger(cfg.Log, logOut)
	be, err := backend.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("close backend")
		}
	}()

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: demo.New(demo.Options{
			Store:    be.Store,
			Logger:   log,
			Work:     cfg.Work,
			Coalesce: cfg.Coalesce,
		}).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.Listen).Msg("serving")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

func invalidate(ctx context.Context, cfg config.Config, tags []string, logOut io.Writer) error {
	log := backend.NewLogger(cfg.Log, logOut)
	if cfg.Tags.Kind != "redis" {
		log.Warn().Msg("local tag store: invalidation only affects this process")
	}
	be, err := backend.New(cfg, log)
	if err != nil {
		return err
	}
	defer be.Close(ctx)

	if err := be.Store.InvalidateTags(ctx, tags...); err != nil {
		return err
	}
	log.Info().Strs("tags", tags).Msg("tags invalidated")
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonroyaalmerol/presenter/internal/config"
	"github.com/sonroyaalmerol/presenter/internal/handlers"
	"github.com/sonroyaalmerol/presenter/internal/playlist"
	"github.com/sonroyaalmerol/presenter/internal/protocol"
	"github.com/sonroyaalmerol/presenter/internal/transport"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func main() {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "presenter [video...]",
		Short:         "Build a playlist and drive a remote projector",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadPresenter(v)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.LogLevel, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return run(cmd.Context(), cfg, args)
		},
	}
	config.BindPresenterFlags(v, cmd.Flags())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("presenter exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Presenter, initial []string) error {
	skip, err := protocol.ParseSkipPolicy(cfg.DefaultSkip)
	if err != nil {
		return err
	}

	client, err := transport.Dial(ctx, cfg.URL)
	if err != nil {
		return err
	}
	defer client.Close()

	ctrl := playlist.NewController(client)
	for _, path := range initial {
		ctrl.Append(protocol.Source{Path: path, Skip: skip})
	}
	console := handlers.NewConsole(ctrl, skip, afero.NewOsFs(), os.Stdin, os.Stdout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Serve(ctrl)
		if gctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer client.Close()
		return console.Run(gctx)
	})
	return g.Wait()
}

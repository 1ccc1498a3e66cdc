package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonroyaalmerol/presenter/internal/cache"
	"github.com/sonroyaalmerol/presenter/internal/config"
	"github.com/sonroyaalmerol/presenter/internal/media"
	"github.com/sonroyaalmerol/presenter/internal/player"
	"github.com/sonroyaalmerol/presenter/internal/repository"
	"github.com/sonroyaalmerol/presenter/internal/transport"
	"github.com/sonroyaalmerol/presenter/internal/utils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func main() {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "projector",
		Short:         "Play videos on this machine under the control of a remote presenter",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadProjector(v)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.LogLevel, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return run(cmd.Context(), cfg)
		},
	}
	config.BindProjectorFlags(v, cmd.Flags())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("projector exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Projector) error {
	fs := afero.NewOsFs()
	var prober media.Prober = media.NewAVProber(fs, cfg.ProbeTimeout)

	var (
		journal   *repository.Journal
		engineLog player.Journal
	)
	if cfg.Journal {
		db, err := repository.OpenDB(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer db.Close()
		repo := repository.NewRepo(db)
		journal = repository.NewJournal(repo, repository.DefaultJournalBuffer)
		engineLog = journal
		if cfg.ProbeCacheLimit > 0 {
			prober = cache.NewProbeCache(fs, prober, repo, cfg.ProbeCacheLimit)
		}
		slog.Info("session journal enabled", "dataDir", cfg.DataDir, "probeCacheLimit", cfg.ProbeCacheLimit)
	}

	engine := player.NewEngine(prober, media.NewAVOpener(), engineLog)
	engine.SetMinRate(cfg.MinRate)

	status := func(ctx context.Context) (any, error) {
		out := struct {
			Playback player.Status               `json:"playback"`
			Recent   []repository.SessionRecord `json:"recent,omitempty"`
		}{Playback: engine.Status()}
		if journal != nil {
			recent, err := journal.Recent(ctx, 10)
			if err != nil {
				return nil, err
			}
			out.Recent = recent
		}
		return out, nil
	}

	srv := transport.NewServer(ctx, engine, status)
	engine.SetEventSender(srv)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if urls, err := utils.CandidateURLs(cfg.Listen); err == nil {
		for _, u := range urls {
			slog.Info("presenter can connect at", "url", u)
		}
	} else {
		slog.Warn("could not list listen addresses", "err", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		_ = srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		surface := player.NewHeadlessSurface(engine, 5*time.Second)
		err := player.NewRenderPump(engine, surface, cfg.FPS).Run(gctx)
		if stopErr := engine.Stop(); stopErr != nil && !errors.Is(stopErr, player.ErrNoSession) {
			slog.Warn("stopping playback", "err", stopErr)
		}
		return err
	})

	g.Go(func() error {
		select {
		case <-srv.Connected():
			slog.Info("presenter connected")
		case <-gctx.Done():
			return nil
		}
		if err := srv.Wait(gctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("presenter connection lost, playback continues", "err", err)
		}
		return nil
	})

	if journal != nil {
		g.Go(func() error { return journal.Run(gctx) })
	}

	return g.Wait()
}

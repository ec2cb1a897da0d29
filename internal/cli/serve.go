package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/trajevent/internal/api"
	"github.com/star/trajevent/internal/config"
	"github.com/star/trajevent/internal/propagation"
	"github.com/star/trajevent/internal/stream"
	"github.com/star/trajevent/internal/tle"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes eclipse merging, stop searches and the crossing stream over
HTTP. It is configured entirely through TRAJEVENT_* environment variables.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}))
			if !rootOpts.Verbose {
				logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := runServe(ctx, logger); err != nil {
				logger.Error("serve failed", "error", err)
				return err
			}
			return nil
		},
	}
}

func runServe(ctx context.Context, logger *slog.Logger) error {
	env, err := config.LoadEnv(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	store := tle.NewStore()
	refresher := &tle.Refresher{
		Store:  store,
		Cache:  tle.NewCache(env.TLE.CacheDir, env.TLE.MaxFiles),
		MaxAge: env.TLE.MaxAge,
		Logger: logger.With("component", "tle"),
	}
	if env.TLE.EnableFetch {
		refresher.Fetcher = tle.NewFetcher(env.TLE.SourceURL, refresher.Logger, env.TLE.ExtraSourceURLs...)
	}
	if err := refresher.LoadCache(); err != nil {
		logger.Info("no TLE cache found, starting without TLE data", "error", err)
	}

	catalog := propagation.NewCatalog(store, propagation.Config(env.Search), env.Station.Observer(), logger.With("component", "search"))
	streamHandler := stream.NewHandler(catalog, store, env.Stream, logger.With("component", "stream"))

	srv := api.NewServer(env.HTTPAddr, logger, api.Deps{
		Auth:           env.Auth,
		TrustProxy:     env.TrustProxy,
		Store:          store,
		Catalog:        catalog,
		Stream:         streamHandler,
		SecondsPerUnit: env.SecondsPerUnit,
	})

	go refresher.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", env.HTTPAddr,
			"auth_enabled", env.Auth.Enabled,
			"tle_fetch_enabled", env.TLE.EnableFetch,
			"ground_station", env.Station != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return WrapExitError(ExitFailure, "server listen error", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "server shutdown error", err)
	}

	logger.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mmcdole/reviewnotes/internal/adapter"
	"github.com/mmcdole/reviewnotes/internal/cache"
	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/mmcdole/reviewnotes/internal/playlist"
	"github.com/mmcdole/reviewnotes/internal/store"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	// Post-run hooks are skipped when a command fails, so close here.
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("Error:"), err)
		stop()
		os.Exit(1)
	}
}

// app owns the process-wide store for the duration of one command.
type app struct {
	configFile string
	verbose    bool

	cfg    *adapter.Config
	logger *slog.Logger
	repo   domain.Repository
	svc    *playlist.Service
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "reviewnotes",
		Short:         "Review playlists with draft notes, synced to the asset tracker",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default $HOME/.config/reviewnotes/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "print store events as they happen")

	root.AddGroup(
		&cobra.Group{ID: "playlists", Title: "Playlists:"},
		&cobra.Group{ID: "notes", Title: "Versions and notes:"},
		&cobra.Group{ID: "sync", Title: "Remote sync:"},
	)
	root.AddCommand(
		newListCmd(a), newShowCmd(a), newCreateCmd(a), newRenameCmd(a),
		newDeleteCmd(a), newSearchCmd(a), newStatsCmd(a),
		newAddCmd(a), newRemoveCmd(a), newDraftCmd(a), newPurgeCmd(a),
		newSyncCmd(a), newResolveCmd(a), newCancelCmd(a), newRefreshCmd(a),
	)
	return root, a
}

func (a *app) open(ctx context.Context) error {
	cfg, err := adapter.LoadConfigFrom(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)
	a.logger = logger
	logger.Info("starting reviewnotes", "version", Version, "driver", cfg.Storage.Driver)

	dir, err := cfg.StoragePath()
	if err != nil {
		return err
	}
	repo, err := store.Open(store.Driver(cfg.Storage.Driver), dir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.repo = repo

	// No remote client is linked into the CLI; sync and refresh report the
	// remote as unavailable.
	a.svc = playlist.NewService(repo, nil,
		playlist.WithLogger(logger),
		playlist.WithCache(cache.New(cache.Config{
			TTL:           cfg.Cache.TTL,
			Capacity:      cfg.Cache.Capacity,
			SweepInterval: cfg.Cache.SweepInterval,
			Logger:        logger,
		})),
		playlist.WithPreservationWindow(cfg.Drafts.PreservationWindow),
		playlist.WithBatchSize(cfg.Sync.BatchSize),
	)
	if a.verbose {
		a.svc.SubscribeAll(func(e domain.Event) {
			fmt.Fprintln(os.Stderr, renderEvent(e))
		})
	}
	return a.svc.Init(ctx)
}

func (a *app) close() error {
	if a.svc != nil {
		a.svc.Close()
		a.svc = nil
	}
	if a.repo != nil {
		repo := a.repo
		a.repo = nil
		if err := repo.Close(); err != nil {
			a.logger.Error("failed to close store", "error", err)
			return err
		}
	}
	return nil
}

// playlist loads id or reports it missing.
func (a *app) playlist(ctx context.Context, id string) (*domain.Playlist, error) {
	p, err := a.svc.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, id)
	}
	return p, nil
}

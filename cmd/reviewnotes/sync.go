package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/mmcdole/reviewnotes/internal/events"
	"github.com/mmcdole/reviewnotes/internal/playlist"
	"github.com/spf13/cobra"
)

// watchSync prints sync events on w until the returned stop func is called.
func watchSync(a *app, w io.Writer) (stop func()) {
	ch := make(chan domain.Event, 64)
	unsubscribe := a.svc.SubscribeAll(events.Channel(ch))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			switch e.Type {
			case domain.EventSyncStarted, domain.EventSyncProgress, domain.EventSyncCompleted,
				domain.EventSyncFailed, domain.EventSyncNameConflict:
				fmt.Fprintln(w, renderEvent(e))
			}
		}
	}()
	return func() {
		unsubscribe()
		close(ch)
		<-done
	}
}

func newSyncCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:     "sync [playlist-id]...",
		GroupID: "sync",
		Short:   "Push playlists to the asset tracker",
		Args: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("name at least one playlist or pass --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if all {
				pls, err := a.svc.ListPlaylists(cmd.Context())
				if err != nil {
					return err
				}
				ids = nil
				for _, p := range pls {
					if p.RemoteSyncStatus != domain.SyncStatusSynced && !p.DeletedRemotely {
						ids = append(ids, p.ID)
					}
				}
			}

			out := cmd.OutOrStdout()
			stop := watchSync(a, cmd.ErrOrStderr())
			results := a.svc.SyncPlaylists(cmd.Context(), ids)
			stop()

			failed := 0
			for _, r := range results {
				if r.Err == nil {
					fmt.Fprintf(out, "%s %s\n", successStyle.Render(SyncedChar), r.PlaylistID)
					continue
				}
				failed++
				reportSyncError(out, r)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d playlist(s) failed to sync", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "sync every playlist not yet synced")
	return cmd
}

func reportSyncError(w io.Writer, r playlist.SyncResult) {
	var conflict *domain.NameConflictError
	switch {
	case errors.As(r.Err, &conflict):
		fmt.Fprintf(w, "%s %s %s\n", errorStyle.Render(FailedChar), r.PlaylistID, r.Err)
		fmt.Fprintf(w, "  rename with: reviewnotes resolve %s <new-name>\n", r.PlaylistID)
		fmt.Fprintf(w, "  or give up:  reviewnotes cancel %s\n", r.PlaylistID)
	case errors.Is(r.Err, domain.ErrRemoteUnavailable):
		fmt.Fprintf(w, "%s %s %s\n", errorStyle.Render(FailedChar), r.PlaylistID, dimStyle.Render("no remote service configured"))
	default:
		fmt.Fprintf(w, "%s %s %s\n", errorStyle.Render(FailedChar), r.PlaylistID, r.Err)
	}
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "resolve <playlist-id> <new-name>",
		GroupID: "sync",
		Short:   "Rename a playlist after a name conflict and sync again",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := watchSync(a, cmd.ErrOrStderr())
			err := a.svc.ResolveConflictAndRetry(cmd.Context(), args[0], strings.Join(args[1:], " "))
			stop()
			if err != nil {
				reportSyncError(cmd.OutOrStdout(), playlist.SyncResult{PlaylistID: args[0], Err: err})
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render(SyncedChar), args[0])
			return nil
		},
	}
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "cancel <playlist-id>",
		GroupID: "sync",
		Short:   "Abandon a sync paused on a name conflict",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.CancelSyncDueToConflict(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Sync cancelled"))
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:     "refresh <playlist-id>",
		GroupID: "sync",
		Short:   "Compare a synced playlist with the asset tracker",
		Long: `Fetch the remote membership of a synced playlist and show what changed.
The changes are applied right away when the playlist has locally added
versions, or when --apply is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := a.svc.RefreshPlaylist(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.DeletedRemotely {
				fmt.Fprintf(out, "%s %s\n", errorStyle.Render(DeletedChar), "the remote playlist is gone; keeping a read-only copy")
			}
			if res.Renamed != "" {
				fmt.Fprintf(out, "%s renamed to %s\n", accentStyle.Render("~"), titleStyle.Render(res.Renamed))
			}
			for _, v := range res.AddedVersions {
				fmt.Fprintf(out, "%s %s\n", successStyle.Render("+"), v.ID)
			}
			for _, v := range res.RemovedVersions {
				fmt.Fprintf(out, "%s %s\n", errorStyle.Render("-"), v.ID)
			}
			if res.AddedCount == 0 && res.RemovedCount == 0 {
				fmt.Fprintln(out, dimStyle.Render("Up to date"))
				return nil
			}

			if !res.Applied && apply {
				if err := a.svc.ApplyPlaylistRefresh(ctx, args[0], res.FreshVersions, res.AddedVersions, res.RemovedVersions); err != nil {
					return err
				}
				res.Applied = true
			}
			if res.Applied {
				fmt.Fprintln(out, subtitleStyle.Render("Applied"))
			} else {
				fmt.Fprintln(out, dimStyle.Render("Run again with --apply to update the local playlist"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "apply the changes")
	return cmd
}

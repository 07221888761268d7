package main

import (
	"fmt"
	"strings"

	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		GroupID: "playlists",
		Short:   "List local playlists",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				pls []*domain.Playlist
				err error
			)
			if project != "" {
				pls, err = a.svc.GetPlaylistsByProject(cmd.Context(), project)
			} else {
				pls, err = a.svc.ListPlaylists(cmd.Context())
			}
			if err != nil {
				return err
			}
			renderPlaylists(cmd.OutOrStdout(), pls)
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "only playlists in this project")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "show <playlist-id>",
		GroupID: "playlists",
		Short:   "Show a playlist and its versions",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.playlist(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderPlaylist(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		kind        string
		project     string
		description string
		category    string
		remoteID    string
		versions    []string
	)
	cmd := &cobra.Command{
		Use:     "create <name>",
		GroupID: "playlists",
		Short:   "Create a local playlist",
		Long: `Create a playlist in the local store.

A playlist with the same name, project and kind is returned instead of
creating a duplicate. Use --remote-id to import a playlist that already
exists in the asset tracker; it is created as synced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.CreatePlaylistRequest{
				Name:         strings.TrimSpace(args[0]),
				Kind:         domain.PlaylistKind(kind),
				ProjectID:    project,
				CategoryName: category,
				Description:  description,
				RemoteID:     remoteID,
			}
			// Versions named on the command line were picked by hand.
			for _, id := range versions {
				req.Versions = append(req.Versions, domain.VersionInput{ID: id, ManuallyAdded: remoteID == ""})
			}
			p, err := a.svc.CreatePlaylist(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s %s\n", successStyle.Render(SyncedChar), titleStyle.Render(p.Name), dimStyle.Render(p.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", string(domain.KindList), "playlist kind: list or reviewSession")
	cmd.Flags().StringVarP(&project, "project", "p", "", "project id")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category name")
	cmd.Flags().StringVar(&remoteID, "remote-id", "", "import an existing remote playlist")
	cmd.Flags().StringSliceVar(&versions, "version", nil, "version ids to add (repeatable)")
	return cmd
}

func newRenameCmd(a *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:     "rename <playlist-id> <name>",
		GroupID: "playlists",
		Short:   "Rename a playlist or change its description",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[1])
			edit := domain.PlaylistEdit{Name: &name}
			if cmd.Flags().Changed("description") {
				edit.Description = &description
			}
			if err := a.svc.UpdatePlaylist(cmd.Context(), args[0], edit); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed to %s\n", successStyle.Render(SyncedChar), titleStyle.Render(name))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <playlist-id>",
		Aliases: []string{"rm"},
		GroupID: "playlists",
		Short:   "Delete a playlist with its versions and notes",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.DeletePlaylist(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", successStyle.Render(SyncedChar), dimStyle.Render(args[0]))
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "search <query>",
		GroupID: "playlists",
		Short:   "Fuzzy search playlist names",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.svc.SearchPlaylists(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			renderSearch(cmd.OutOrStdout(), results)
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "cache-stats",
		GroupID: "playlists",
		Short:   "Show what the in-memory cache holds",
		Hidden:  true,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.svc.ListPlaylists(cmd.Context()); err != nil {
				return err
			}
			renderCacheStats(cmd.OutOrStdout(), a.svc.CacheStats())
			return nil
		},
	}
}

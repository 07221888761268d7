package main

import (
	"fmt"
	"strings"

	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/spf13/cobra"
)

func newAddCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:     "add <playlist-id> <version-id>...",
		GroupID: "notes",
		Short:   "Add versions to a playlist",
		Long: `Add versions to a playlist. Re-adding a version removed within the
preservation window restores its draft note.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := make([]domain.VersionInput, 0, len(args)-1)
			for _, id := range args[1:] {
				inputs = append(inputs, domain.VersionInput{ID: id, Name: name, ManuallyAdded: true})
			}
			if err := a.svc.AddVersionsToPlaylist(cmd.Context(), args[0], inputs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added %d version(s)\n", successStyle.Render(SyncedChar), len(inputs))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name for the added versions")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <playlist-id> <version-id>",
		GroupID: "notes",
		Short:   "Remove a version (its note is kept for a while)",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.RemoveVersionFromPlaylist(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", successStyle.Render(SyncedChar), dimStyle.Render(args[1]))
			return nil
		},
	}
}

func newDraftCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "draft",
		GroupID: "notes",
		Short:   "Edit draft notes on versions",
	}

	var label string
	save := &cobra.Command{
		Use:   "save <playlist-id> <version-id> <text>...",
		Short: "Save a draft note; empty text clears it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var labelID *string
			if cmd.Flags().Changed("label") {
				labelID = &label
			}
			content := strings.Join(args[2:], " ")
			if err := a.svc.SaveDraft(cmd.Context(), args[0], args[1], content, labelID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Draft saved\n", accentStyle.Render(DraftNoteChar))
			return nil
		},
	}
	save.Flags().StringVarP(&label, "label", "l", "", "label id")

	clearCmd := &cobra.Command{
		Use:   "clear <playlist-id> <version-id>",
		Short: "Clear a draft note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.ClearDraft(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Draft cleared"))
			return nil
		},
	}

	publish := &cobra.Command{
		Use:   "publish <playlist-id> <version-id>",
		Short: "Mark a note as published",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.PublishNote(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Published\n", successStyle.Render(PublishedNoteChar))
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <playlist-id> <version-id>",
		Short: "Print a draft note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.svc.GetDraftContent(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if d == nil {
				return fmt.Errorf("%w: %s", domain.ErrVersionNotFound, args[1])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, subtitleStyle.Render(string(d.Status)))
			if d.LabelID != "" {
				fmt.Fprintln(out, dimStyle.Render("label "+d.LabelID))
			}
			if d.Content != "" {
				fmt.Fprintln(out, d.Content)
			}
			return nil
		},
	}

	cmd.AddCommand(save, clearCmd, publish, show)
	return cmd
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "purge",
		GroupID: "notes",
		Short:   "Delete removed versions past the preservation window",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.svc.PurgeRemovedVersions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Purged %d version(s)\n", successStyle.Render(SyncedChar), n)
			return nil
		},
	}
}

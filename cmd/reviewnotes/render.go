package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/reviewnotes/internal/cache"
	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/mmcdole/reviewnotes/internal/search"
	"golang.org/x/term"
)

const defaultWidth = 80

// termWidth returns the stdout width, or defaultWidth when not a terminal.
func termWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

func truncate(s string, limit int) string {
	if limit <= 1 || lipgloss.Width(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) > limit-1 {
		r = r[:limit-1]
	}
	return string(r) + "…"
}

func statusGlyph(p *domain.Playlist) string {
	if p.DeletedRemotely {
		return errorStyle.Render(DeletedChar)
	}
	switch p.RemoteSyncStatus {
	case domain.SyncStatusSynced:
		return successStyle.Render(SyncedChar)
	case domain.SyncStatusSyncing:
		return accentStyle.Render(SyncingChar)
	case domain.SyncStatusFailed:
		return errorStyle.Render(FailedChar)
	default:
		return dimStyle.Render(NotSyncedChar)
	}
}

func noteGlyph(v domain.Version) string {
	switch v.NoteStatus {
	case domain.NoteStatusDraft:
		return accentStyle.Render(DraftNoteChar)
	case domain.NoteStatusPublished:
		return successStyle.Render(PublishedNoteChar)
	default:
		return " "
	}
}

func kindLabel(k domain.PlaylistKind) string {
	if k == domain.KindReviewSession {
		return lipgloss.NewStyle().Foreground(Blue).Render("session")
	}
	return lipgloss.NewStyle().Foreground(Blue).Render("list")
}

// renderPlaylists writes one line per playlist
func renderPlaylists(w io.Writer, pls []*domain.Playlist) {
	if len(pls) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No playlists"))
		return
	}
	nameWidth := termWidth() - 48
	if nameWidth < 16 {
		nameWidth = 16
	}
	for _, p := range pls {
		name := lipgloss.NewStyle().Width(nameWidth).Render(truncate(p.Name, nameWidth))
		fmt.Fprintf(w, "%s %s %-8s %s %s\n",
			statusGlyph(p),
			titleStyle.Render(name),
			kindLabel(p.Kind),
			subtitleStyle.Render(fmt.Sprintf("%3d versions", len(p.Versions))),
			dimStyle.Render(p.ID),
		)
	}
}

// renderPlaylist writes a playlist header followed by its versions
func renderPlaylist(w io.Writer, p *domain.Playlist) {
	fmt.Fprintf(w, "%s %s\n", statusGlyph(p), titleStyle.Render(p.Name))

	meta := []string{string(p.Kind), string(p.RemoteSyncStatus)}
	if p.ProjectID != "" {
		meta = append(meta, "project "+p.ProjectID)
	}
	if p.RemoteID != "" {
		meta = append(meta, "remote "+p.RemoteID)
	}
	if p.SyncedAt != nil {
		meta = append(meta, "synced "+p.SyncedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w, subtitleStyle.Render("  "+strings.Join(meta, " · ")))
	if p.Description != "" {
		fmt.Fprintln(w, "  "+p.Description)
	}
	if p.DeletedRemotely {
		fmt.Fprintln(w, errorStyle.Render("  deleted remotely; showing the last known versions (read-only)"))
	}
	fmt.Fprintln(w)

	if len(p.Versions) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  No versions"))
		return
	}
	width := termWidth()
	for _, v := range p.Versions {
		label := v.Name
		if label == "" {
			label = v.ID
		}
		if v.VersionNumber > 0 {
			label = fmt.Sprintf("%s v%03d", label, v.VersionNumber)
		}
		if v.ManuallyAdded {
			label += dimStyle.Render(" (local)")
		}
		fmt.Fprintf(w, "  %s %s %s\n", noteGlyph(v), label, dimStyle.Render(v.ID))
		if v.DraftContent != "" {
			fmt.Fprintln(w, noteStyle.Render(truncate(firstLine(v.DraftContent), width-4)))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func renderSearch(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No matches"))
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s %s %s\n", statusGlyph(r.Playlist), highlight(r.Playlist.Name, r.MatchedIndexes), dimStyle.Render(r.Playlist.ID))
	}
}

// highlight renders the matched rune positions of s in the accent color.
func highlight(s string, idx []int) string {
	matched := make(map[int]bool, len(idx))
	for _, i := range idx {
		matched[i] = true
	}
	var b strings.Builder
	for i, r := range []rune(s) {
		if matched[i] {
			b.WriteString(accentStyle.Bold(true).Render(string(r)))
		} else {
			b.WriteString(titleStyle.Render(string(r)))
		}
	}
	return b.String()
}

func renderCacheStats(w io.Writer, st cache.Stats) {
	section := func(title string, entries []cache.EntryStat) {
		fmt.Fprintf(w, "%s %s\n", titleStyle.Render(title), dimStyle.Render(fmt.Sprintf("(%d)", len(entries))))
		for _, e := range entries {
			state := successStyle.Render("live")
			if e.Expired {
				state = errorStyle.Render("expired")
			}
			fmt.Fprintf(w, "  %s %s %s\n", e.Key, subtitleStyle.Render(e.Age.Round(time.Second).String()), state)
		}
	}
	section("Playlists", st.Playlists)
	section("Version lists", st.VersionLists)
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Snapshots"), dimStyle.Render(fmt.Sprintf("(%d)", len(st.Snapshots))))
	for _, id := range st.Snapshots {
		fmt.Fprintln(w, "  "+id)
	}
}

// renderEvent formats a store event for --verbose output and sync progress
func renderEvent(e domain.Event) string {
	head := accentStyle.Render(string(e.Type))
	parts := []string{head}
	if e.PlaylistName != "" {
		parts = append(parts, titleStyle.Render(e.PlaylistName))
	} else if e.PlaylistID != "" {
		parts = append(parts, e.PlaylistID)
	}
	if e.Message != "" {
		parts = append(parts, subtitleStyle.Render(e.Message))
	}
	if len(e.VersionIDs) > 0 {
		parts = append(parts, dimStyle.Render(strings.Join(e.VersionIDs, ",")))
	}
	return strings.Join(parts, " ")
}

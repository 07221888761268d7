package playlist

import (
	"context"
	"log/slog"

	"github.com/mmcdole/reviewnotes/internal/domain"
)

// DraftManager edits the per-version note. It writes durable storage only;
// the Service invalidates the cache around these calls.
type DraftManager struct {
	repo   domain.Repository
	logger *slog.Logger
}

func NewDraftManager(repo domain.Repository, logger *slog.Logger) *DraftManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftManager{repo: repo, logger: logger}
}

// SaveDraft stores content and derives the note status from it. A nil
// labelID leaves the label unchanged. Saving blank content is an explicit
// clear and resets even a published note.
func (d *DraftManager) SaveDraft(ctx context.Context, playlistID, versionID, content string, labelID *string) error {
	status := domain.NoteStatusFor(content)
	err := d.repo.UpdateVersion(ctx, playlistID, versionID, domain.VersionUpdate{
		DraftContent: &content,
		LabelID:      labelID,
		NoteStatus:   &status,
	})
	if err != nil {
		d.logger.Error("failed to save draft", "error", err, "playlistID", playlistID, "versionID", versionID)
		return err
	}
	d.logger.Debug("saved draft", "playlistID", playlistID, "versionID", versionID, "status", status)
	return nil
}

func (d *DraftManager) ClearDraft(ctx context.Context, playlistID, versionID string) error {
	empty, status := "", domain.NoteStatusEmpty
	err := d.repo.UpdateVersion(ctx, playlistID, versionID, domain.VersionUpdate{
		DraftContent: &empty,
		NoteStatus:   &status,
	})
	if err != nil {
		d.logger.Error("failed to clear draft", "error", err, "playlistID", playlistID, "versionID", versionID)
		return err
	}
	return nil
}

// PublishNote marks the note published without touching its content.
func (d *DraftManager) PublishNote(ctx context.Context, playlistID, versionID string) error {
	status := domain.NoteStatusPublished
	err := d.repo.UpdateVersion(ctx, playlistID, versionID, domain.VersionUpdate{NoteStatus: &status})
	if err != nil {
		d.logger.Error("failed to publish note", "error", err, "playlistID", playlistID, "versionID", versionID)
		return err
	}
	return nil
}

// GetDraftContent returns the note of a live version, or nil.
func (d *DraftManager) GetDraftContent(ctx context.Context, playlistID, versionID string) (*domain.Draft, error) {
	v, err := d.repo.GetVersion(ctx, playlistID, versionID)
	if err != nil || v == nil || v.IsRemoved {
		return nil, err
	}
	return &domain.Draft{Content: v.DraftContent, LabelID: v.LabelID, Status: v.NoteStatus}, nil
}

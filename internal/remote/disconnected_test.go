package remote

import (
	"context"
	"testing"

	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDisconnectedIsUnavailable(t *testing.T) {
	ctx := context.Background()
	c := NewDisconnected()

	_, err := c.GetPlaylists(ctx, "P1")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	_, err = c.GetLists(ctx, "P1")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	_, err = c.GetPlaylistVersions(ctx, "R1")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)

	res, err := c.CreateList(ctx, domain.RemoteCreateRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.False(t, res.Success)
	_, err = c.CreateReviewSession(ctx, domain.RemoteCreateRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	_, err = c.AddVersionsToPlaylist(ctx, "R1", []string{"A"}, domain.KindList)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/cache"
	"shortreel-backend/internal/config"
	"shortreel-backend/internal/models"
)

func testFeedConfig() config.FeedConfig {
	return config.FeedConfig{
		CompletionThreshold: 80,
		ContinueMinPercent:  5,
		ContinueMaxPercent:  80,
	}
}

type watchFixture struct {
	svc      *WatchService
	watch    *fakeWatchStore
	episodes *fakeEpisodeStore
	titles   *fakeTitleStore
	users    *fakeUserStore
	tracker  *fakeTracker
}

func newWatchFixture() *watchFixture {
	f := &watchFixture{
		watch:    newFakeWatchStore(),
		episodes: newFakeEpisodeStore(),
		titles:   newFakeTitleStore(),
		users:    newFakeUserStore(),
		tracker:  &fakeTracker{},
	}
	f.episodes.byID["ep1"] = &models.Episode{
		ID: "ep1", TitleID: "t1", SeasonNumber: 1, EpisodeNumber: 1, Duration: 100,
	}
	f.svc = NewWatchService(f.watch, f.episodes, f.titles, f.users,
		cache.New(nil), f.tracker, testFeedConfig())
	return f
}

func TestStartWatchingCreatesRecord(t *testing.T) {
	f := newWatchFixture()

	rec, err := f.svc.StartWatching(context.Background(), "u1", "ep1", "720p", "feed")
	require.NoError(t, err)

	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "t1", rec.TitleID)
	assert.Equal(t, 100, rec.TotalDuration)
	assert.Equal(t, models.WatchStatusWatching, rec.Status)
	assert.Equal(t, 1, rec.Session.TotalSessions)
	assert.Len(t, f.tracker.eventsOfType(models.EventVideoStart), 1)
}

func TestStartWatchingUnknownEpisode(t *testing.T) {
	f := newWatchFixture()

	_, err := f.svc.StartWatching(context.Background(), "u1", "missing", "", "")
	assert.ErrorIs(t, err, apperr.ErrEpisodeNotFound)
}

func TestUpdateProgressMonotonicPosition(t *testing.T) {
	f := newWatchFixture()
	ctx := context.Background()

	rec, err := f.svc.UpdateProgress(ctx, "u1", "ep1", ProgressUpdate{Position: 50})
	require.NoError(t, err)
	assert.Equal(t, 50, rec.CurrentPosition)
	assert.InDelta(t, 50, rec.PercentageWatched, 1e-9)

	// A stale client replay must not rewind.
	rec, err = f.svc.UpdateProgress(ctx, "u1", "ep1", ProgressUpdate{Position: 30})
	require.NoError(t, err)
	assert.Equal(t, 50, rec.CurrentPosition)
	assert.InDelta(t, 50, rec.PercentageWatched, 1e-9)
}

func TestUpdateProgressRejectsNegativePosition(t *testing.T) {
	f := newWatchFixture()

	_, err := f.svc.UpdateProgress(context.Background(), "u1", "ep1", ProgressUpdate{Position: -1})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUpdateProgressClampsToDuration(t *testing.T) {
	f := newWatchFixture()

	rec, err := f.svc.UpdateProgress(context.Background(), "u1", "ep1", ProgressUpdate{Position: 250})
	require.NoError(t, err)
	assert.Equal(t, 100, rec.CurrentPosition)
	assert.InDelta(t, 100, rec.PercentageWatched, 1e-9)
}

func TestCompletionAtThresholdIsIdempotent(t *testing.T) {
	f := newWatchFixture()
	ctx := context.Background()

	rec, err := f.svc.UpdateProgress(ctx, "u1", "ep1", ProgressUpdate{Position: 80})
	require.NoError(t, err)
	assert.True(t, rec.IsCompleted)
	assert.Equal(t, models.WatchStatusCompleted, rec.Status)
	require.NotNil(t, rec.Session.CompletedAt)
	stamped := *rec.Session.CompletedAt

	rec, err = f.svc.UpdateProgress(ctx, "u1", "ep1", ProgressUpdate{Position: 95})
	require.NoError(t, err)
	assert.True(t, rec.IsCompleted)
	require.NotNil(t, rec.Session.CompletedAt)
	assert.Equal(t, stamped, *rec.Session.CompletedAt)

	// The rate refresh fires exactly once per record completion.
	assert.Equal(t, []string{"ep1"}, f.episodes.refreshedEpisodes)
	assert.Equal(t, []string{"t1"}, f.titles.refreshedTitles)
}

func TestProgressBelowThresholdDoesNotComplete(t *testing.T) {
	f := newWatchFixture()

	rec, err := f.svc.UpdateProgress(context.Background(), "u1", "ep1", ProgressUpdate{Position: 79})
	require.NoError(t, err)
	assert.False(t, rec.IsCompleted)
	assert.Nil(t, rec.Session.CompletedAt)
	assert.Empty(t, f.episodes.refreshedEpisodes)
}

func TestMarkCompletedIdempotent(t *testing.T) {
	f := newWatchFixture()
	ctx := context.Background()

	rec, err := f.svc.MarkCompleted(ctx, "u1", "ep1", 60, 300)
	require.NoError(t, err)
	assert.True(t, rec.IsCompleted)

	// An explicit completion with a mid-episode position still counts as
	// fully watched, so the completion rule holds for the record.
	assert.Equal(t, 100, rec.CurrentPosition)
	assert.InDelta(t, 100, rec.PercentageWatched, 1e-9)

	require.NotNil(t, rec.Session.CompletedAt)
	stamped := *rec.Session.CompletedAt

	rec, err = f.svc.MarkCompleted(ctx, "u1", "ep1", 70, 100)
	require.NoError(t, err)
	assert.Equal(t, stamped, *rec.Session.CompletedAt)
	assert.Equal(t, []string{"ep1"}, f.episodes.refreshedEpisodes)
	assert.Len(t, f.tracker.eventsOfType(models.EventVideoEnd), 2)
}

func TestToggleLikeIsAnInvolution(t *testing.T) {
	f := newWatchFixture()
	ctx := context.Background()

	liked, _, err := f.svc.ToggleLike(ctx, "u1", "ep1")
	require.NoError(t, err)
	assert.True(t, liked)

	liked, _, err = f.svc.ToggleLike(ctx, "u1", "ep1")
	require.NoError(t, err)
	assert.False(t, liked)

	rec, err := f.watch.Get(ctx, "u1", "ep1")
	require.NoError(t, err)
	assert.False(t, rec.Liked)

	user := f.users.byID["u1"]
	require.NotNil(t, user)
	assert.Zero(t, user.Engagement.Likes)

	// Only the like, never the un-like, is tracked.
	assert.Len(t, f.tracker.eventsOfType(models.EventLike), 1)
}

func TestShareMarksRecordAndTracks(t *testing.T) {
	f := newWatchFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Share(ctx, "u1", "ep1", "whatsapp"))

	rec, err := f.watch.Get(ctx, "u1", "ep1")
	require.NoError(t, err)
	assert.True(t, rec.Shared)
	assert.Len(t, f.tracker.eventsOfType(models.EventShare), 1)
}

func TestSetRatingValidatesRange(t *testing.T) {
	f := newWatchFixture()

	for _, rating := range []int{0, -1, 6} {
		_, _, err := f.svc.SetRating(context.Background(), "u1", "t1", rating)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
}

func TestSetRatingRequiresWatch(t *testing.T) {
	f := newWatchFixture()
	f.watch.ratingErr = apperr.ErrNotWatched

	_, _, err := f.svc.SetRating(context.Background(), "u1", "t1", 4)
	assert.ErrorIs(t, err, apperr.ErrNotWatched)
}

func TestSetRatingReturnsAggregate(t *testing.T) {
	f := newWatchFixture()
	f.watch.ratingAvg = 3.4
	f.watch.ratingCount = 5

	avg, count, err := f.svc.SetRating(context.Background(), "u1", "t1", 5)
	require.NoError(t, err)
	assert.InDelta(t, 3.4, avg, 1e-9)
	assert.EqualValues(t, 5, count)
}

func TestContinueWatchingBand(t *testing.T) {
	f := newWatchFixture()
	ctx := context.Background()

	for id, pct := range map[string]float64{"e4": 4, "e50": 50, "e95": 95} {
		f.watch.records[f.watch.key("u1", id)] = &models.WatchRecord{
			UserID: "u1", EpisodeID: id, Status: models.WatchStatusWatching,
			PercentageWatched: pct,
		}
	}

	records, err := f.svc.GetContinueWatching(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "e50", records[0].EpisodeID)
}

func TestClearHistory(t *testing.T) {
	f := newWatchFixture()
	ctx := context.Background()

	_, err := f.svc.UpdateProgress(ctx, "u1", "ep1", ProgressUpdate{Position: 10})
	require.NoError(t, err)

	deleted, err := f.svc.ClearHistory(ctx, "u1", "", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = f.watch.Get(ctx, "u1", "ep1")
	assert.ErrorIs(t, err, apperr.ErrRecordNotFound)
}

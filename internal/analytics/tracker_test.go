package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shortreel-backend/internal/models"
)

// newIdleTracker builds a Tracker without the background worker so tests can
// inspect the queue directly.
func newIdleTracker(buffer int) *Tracker {
	return &Tracker{events: make(chan models.AnalyticsEvent, buffer)}
}

func TestTrackFillsDefaults(t *testing.T) {
	tr := newIdleTracker(4)

	tr.Track(models.AnalyticsEvent{UserID: "u1", EventType: models.EventLike})
	tr.Track(models.AnalyticsEvent{UserID: "u1", EventType: models.EventVideoStart})

	assert.Len(t, tr.events, 2)

	e := <-tr.events
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, models.CategoryEngagement, e.Category)

	e = <-tr.events
	assert.Equal(t, models.CategoryVideoPlayback, e.Category)
}

func TestTrackDropsUnknownEventType(t *testing.T) {
	tr := newIdleTracker(4)

	tr.Track(models.AnalyticsEvent{UserID: "u1", EventType: "made_up"})
	assert.Empty(t, tr.events)
}

func TestTrackKeepsExplicitCategory(t *testing.T) {
	tr := newIdleTracker(4)

	tr.Track(models.AnalyticsEvent{
		UserID:    "u1",
		EventType: models.EventLike,
		Category:  models.CategoryUserInteraction,
	})

	e := <-tr.events
	assert.Equal(t, models.CategoryUserInteraction, e.Category)
}

func TestTrackDropsWhenBufferFull(t *testing.T) {
	tr := newIdleTracker(1)

	tr.Track(models.AnalyticsEvent{UserID: "u1", EventType: models.EventLike})
	tr.Track(models.AnalyticsEvent{UserID: "u1", EventType: models.EventShare})

	// The second event is dropped, never queued synchronously.
	assert.Len(t, tr.events, 1)
	e := <-tr.events
	assert.Equal(t, models.EventLike, e.EventType)
}

func TestCloseDrainsAndStops(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track(models.AnalyticsEvent{UserID: "u1", EventType: models.EventLike})
	tr.Close()

	select {
	case <-tr.done:
	default:
		t.Fatal("worker should have stopped after Close")
	}
}

func TestTrackAfterCloseIsDropped(t *testing.T) {
	tr := NewTracker(nil)
	tr.Close()

	// A request racing shutdown drops its event instead of panicking on the
	// closed channel.
	assert.NotPanics(t, func() {
		tr.Track(models.AnalyticsEvent{UserID: "u1", EventType: models.EventLike})
	})
	assert.NotPanics(t, tr.Close)
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, models.CategoryVideoPlayback, categoryFor(models.EventVideoPause))
	assert.Equal(t, models.CategoryNavigation, categoryFor(models.EventSwipeLeft))
	assert.Equal(t, models.CategoryEngagement, categoryFor(models.EventContentView))
	assert.Equal(t, models.CategoryPerformance, categoryFor(models.EventBufferStart))
	assert.Equal(t, models.CategoryUserInteraction, categoryFor(models.EventSessionStart))
}

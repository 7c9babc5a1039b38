package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"shortreel-backend/internal/models"
)

const (
	bufferSize    = 4096
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// Tracker records analytics events without ever blocking the request path.
// Events go onto a buffered channel; a background worker batches them into
// the analytics_events table. When the buffer is full the event is dropped
// and logged, never queued synchronously.
type Tracker struct {
	db     *sql.DB
	events chan models.AnalyticsEvent
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewTracker creates a Tracker and starts its background worker.
func NewTracker(db *sql.DB) *Tracker {
	t := &Tracker{
		db:     db,
		events: make(chan models.AnalyticsEvent, bufferSize),
		done:   make(chan struct{}),
	}
	go t.run()
	return t
}

// Track enqueues an event. Missing id/timestamp/category are filled in.
// Invalid event types are dropped with a log line; failures never propagate.
func (t *Tracker) Track(event models.AnalyticsEvent) {
	if !models.ValidEventTypes[event.EventType] {
		slog.Warn("dropping unknown analytics event type", "event_type", event.EventType)
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Category == "" {
		event.Category = categoryFor(event.EventType)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		slog.Warn("analytics tracker closed, dropping event", "event_type", event.EventType)
		return
	}
	select {
	case t.events <- event:
	default:
		slog.Warn("analytics buffer full, dropping event", "event_type", event.EventType)
	}
}

// Close flushes buffered events and stops the worker. Events tracked after
// Close are dropped, never sent on the closed channel.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.events)
	t.mu.Unlock()
	<-t.done
}

func (t *Tracker) run() {
	defer close(t.done)

	batch := make([]models.AnalyticsEvent, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-t.events:
			if !ok {
				t.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= batchSize {
				t.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (t *Tracker) flush(batch []models.AnalyticsEvent) {
	if len(batch) == 0 || t.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Warn("analytics flush failed", "error", err, "events", len(batch))
		return
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO analytics_events (id, user_id, event_type, category,
			content_id, episode_id, session_id, event_data, device_info,
			location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		slog.Warn("analytics prepare failed", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		eventData, _ := json.Marshal(e.EventData)
		deviceInfo, _ := json.Marshal(e.DeviceInfo)
		if _, err := stmt.ExecContext(ctx, e.ID, e.UserID, e.EventType,
			e.Category, e.ContentID, e.EpisodeID, e.SessionID,
			eventData, deviceInfo, e.Location, e.Timestamp); err != nil {
			slog.Warn("analytics insert failed", "event_type", e.EventType, "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Warn("analytics commit failed", "error", err, "events", len(batch))
	}
}

func categoryFor(eventType string) string {
	switch eventType {
	case models.EventVideoStart, models.EventVideoEnd, models.EventVideoPause,
		models.EventVideoResume:
		return models.CategoryVideoPlayback
	case models.EventSwipeLeft, models.EventSwipeRight, models.EventTapEpisode,
		models.EventAppOpen, models.EventAppClose:
		return models.CategoryNavigation
	case models.EventLike, models.EventShare, models.EventContentView:
		return models.CategoryEngagement
	case models.EventBufferStart, models.EventBufferEnd, models.EventError:
		return models.CategoryPerformance
	default:
		return models.CategoryUserInteraction
	}
}

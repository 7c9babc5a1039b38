package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/models"
)

// WatchRepository handles database operations for watch records.
type WatchRepository struct {
	db *sql.DB
}

// NewWatchRepository creates a new WatchRepository.
func NewWatchRepository(db *sql.DB) *WatchRepository {
	return &WatchRepository{db: db}
}

const watchColumns = `
	w.id, w.user_id, w.title_id, w.episode_id, w.season_number, w.episode_number,
	w.current_position, w.total_duration, w.percentage_watched, w.is_completed,
	w.status, w.watched_via, w.rating, w.liked, w.shared,
	w.started_at, w.last_watched_at, w.completed_at, w.total_sessions,
	w.average_session_length, w.session_duration, w.pause_count, w.seek_count,
	w.buffering_time`

func scanWatchRecord(row interface{ Scan(...any) error }) (*models.WatchRecord, error) {
	var w models.WatchRecord
	err := row.Scan(
		&w.ID, &w.UserID, &w.TitleID, &w.EpisodeID, &w.SeasonNumber,
		&w.EpisodeNumber, &w.CurrentPosition, &w.TotalDuration,
		&w.PercentageWatched, &w.IsCompleted, &w.Status, &w.WatchedVia,
		&w.Rating, &w.Liked, &w.Shared,
		&w.Session.StartedAt, &w.Session.LastWatchedAt, &w.Session.CompletedAt,
		&w.Session.TotalSessions, &w.Session.AverageSessionLength,
		&w.Engagement.SessionDuration, &w.Engagement.PauseCount,
		&w.Engagement.SeekCount, &w.Engagement.BufferingTime,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WatchRepository) queryRecords(ctx context.Context, query string, args ...any) ([]models.WatchRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "watch record query failed", err)
	}
	defer rows.Close()

	records := make([]models.WatchRecord, 0)
	for rows.Next() {
		w, err := scanWatchRecord(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDependency, "scan watch record", err)
		}
		records = append(records, *w)
	}
	return records, rows.Err()
}

// Get returns the record for (userID, episodeID).
func (r *WatchRepository) Get(ctx context.Context, userID, episodeID string) (*models.WatchRecord, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM watch_records w WHERE w.user_id = $1 AND w.episode_id = $2",
		watchColumns), userID, episodeID)
	w, err := scanWatchRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrRecordNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "get watch record", err)
	}
	return w, nil
}

// Insert creates a new record. The UNIQUE(user_id, episode_id) constraint
// rejects duplicates.
func (r *WatchRepository) Insert(ctx context.Context, w *models.WatchRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watch_records (id, user_id, title_id, episode_id,
			season_number, episode_number, current_position, total_duration,
			percentage_watched, is_completed, status, watched_via, liked, shared,
			started_at, last_watched_at, completed_at, total_sessions,
			average_session_length, session_duration, pause_count, seek_count,
			buffering_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		w.ID, w.UserID, w.TitleID, w.EpisodeID, w.SeasonNumber, w.EpisodeNumber,
		w.CurrentPosition, w.TotalDuration, w.PercentageWatched, w.IsCompleted,
		w.Status, w.WatchedVia, w.Liked, w.Shared,
		w.Session.StartedAt, w.Session.LastWatchedAt, w.Session.CompletedAt,
		w.Session.TotalSessions, w.Session.AverageSessionLength,
		w.Engagement.SessionDuration, w.Engagement.PauseCount,
		w.Engagement.SeekCount, w.Engagement.BufferingTime)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "insert watch record", err)
	}
	return nil
}

// UpdateProgress writes the progress fields of a record. current_position is
// guarded with GREATEST and completed_at with COALESCE so replayed or
// out-of-order updates can neither rewind progress nor re-stamp completion.
func (r *WatchRepository) UpdateProgress(ctx context.Context, w *models.WatchRecord) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE watch_records SET
			current_position = GREATEST(current_position, $1),
			percentage_watched = $2,
			is_completed = $3,
			status = $4,
			last_watched_at = $5,
			completed_at = COALESCE(completed_at, $6),
			total_sessions = $7,
			average_session_length = $8,
			session_duration = $9
		WHERE user_id = $10 AND episode_id = $11`,
		w.CurrentPosition, w.PercentageWatched, w.IsCompleted, w.Status,
		w.Session.LastWatchedAt, w.Session.CompletedAt, w.Session.TotalSessions,
		w.Session.AverageSessionLength, w.Engagement.SessionDuration,
		w.UserID, w.EpisodeID)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "update watch progress", err)
	}
	return nil
}

// AddEngagement increments the engagement counters. Increments commute, so
// batched or reordered deltas converge to the same totals.
func (r *WatchRepository) AddEngagement(ctx context.Context, userID, episodeID string, d models.EngagementDelta) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE watch_records SET
			pause_count = pause_count + $1,
			seek_count = seek_count + $2,
			buffering_time = buffering_time + $3,
			last_watched_at = NOW()
		WHERE user_id = $4 AND episode_id = $5`,
		d.PauseCount, d.SeekCount, d.BufferingTime, userID, episodeID)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "add engagement", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrRecordNotFound
	}
	return nil
}

// SetLiked flips the like flag on a record.
func (r *WatchRepository) SetLiked(ctx context.Context, userID, episodeID string, liked bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE watch_records SET liked = $1 WHERE user_id = $2 AND episode_id = $3`,
		liked, userID, episodeID)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "set liked", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrRecordNotFound
	}
	return nil
}

// SetShared marks a record as shared.
func (r *WatchRepository) SetShared(ctx context.Context, userID, episodeID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE watch_records SET shared = TRUE WHERE user_id = $1 AND episode_id = $2`,
		userID, episodeID)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "set shared", err)
	}
	return nil
}

// ApplyRating stores the user's rating on their most recent record of the
// title and recomputes the title's aggregate inside one transaction, so
// average_rating and total_ratings can never drift apart.
func (r *WatchRepository) ApplyRating(ctx context.Context, userID, titleID string, rating int) (float64, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.KindDependency, "begin rating tx", err)
	}
	defer tx.Rollback()

	var recordID string
	var previous sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT id, rating FROM watch_records
		WHERE user_id = $1 AND title_id = $2
		ORDER BY last_watched_at DESC
		LIMIT 1
		FOR UPDATE`, userID, titleID).Scan(&recordID, &previous)
	if err == sql.ErrNoRows {
		return 0, 0, apperr.ErrNotWatched
	}
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.KindDependency, "lock watch record", err)
	}

	var avg float64
	var count int64
	err = tx.QueryRowContext(ctx,
		`SELECT average_rating, total_ratings FROM titles WHERE id = $1 FOR UPDATE`,
		titleID).Scan(&avg, &count)
	if err == sql.ErrNoRows {
		return 0, 0, apperr.ErrTitleNotFound
	}
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.KindDependency, "lock title aggregate", err)
	}

	avg, count = nextRatingAggregate(avg, count, previous, rating)

	if _, err := tx.ExecContext(ctx,
		`UPDATE watch_records SET rating = $1 WHERE id = $2`, rating, recordID); err != nil {
		return 0, 0, apperr.Wrap(apperr.KindDependency, "store rating", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE titles SET average_rating = $1, total_ratings = $2, updated_at = NOW() WHERE id = $3`,
		avg, count, titleID); err != nil {
		return 0, 0, apperr.Wrap(apperr.KindDependency, "update title aggregate", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, apperr.Wrap(apperr.KindDependency, "commit rating tx", err)
	}
	return avg, count, nil
}

// nextRatingAggregate folds one rating into a title's (average, count)
// aggregate. A re-rating replaces the previous value, shifting the average
// by (r - r0)/N; a first rating appends.
func nextRatingAggregate(avg float64, count int64, previous sql.NullInt64, rating int) (float64, int64) {
	if previous.Valid {
		if count > 0 {
			return (avg*float64(count) - float64(previous.Int64) + float64(rating)) / float64(count), count
		}
		return float64(rating), 1
	}
	return (avg*float64(count) + float64(rating)) / float64(count+1), count + 1
}

// ContinueWatching returns records strictly inside the continue-watching
// band, most recently watched first.
func (r *WatchRepository) ContinueWatching(ctx context.Context, userID string, minPct, maxPct float64, limit int) ([]models.WatchRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM watch_records w
		WHERE w.user_id = $1
		  AND w.status IN ('watching', 'paused')
		  AND w.percentage_watched > $2 AND w.percentage_watched < $3
		ORDER BY w.last_watched_at DESC
		LIMIT $4`, watchColumns)
	return r.queryRecords(ctx, query, userID, minPct, maxPct, limit)
}

// ListByUserTitle returns the user's records across a title's episodes in
// sequence order, for progress overlays.
func (r *WatchRepository) ListByUserTitle(ctx context.Context, userID, titleID string) ([]models.WatchRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM watch_records w
		WHERE w.user_id = $1 AND w.title_id = $2
		ORDER BY w.season_number, w.episode_number`, watchColumns)
	return r.queryRecords(ctx, query, userID, titleID)
}

// ListWatchlist returns the user's records, optionally narrowed by status,
// most recently watched first, with the total count for pagination.
func (r *WatchRepository) ListWatchlist(ctx context.Context, userID, status string, page, limit int) ([]models.WatchRecord, int, error) {
	where := "w.user_id = $1"
	args := []any{userID}
	argIdx := 2
	if status != "" {
		where += fmt.Sprintf(" AND w.status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM watch_records w WHERE %s", where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.KindDependency, "watchlist count failed", err)
	}

	offset := (page - 1) * limit
	query := fmt.Sprintf(`
		SELECT %s FROM watch_records w
		WHERE %s
		ORDER BY w.last_watched_at DESC
		LIMIT $%d OFFSET $%d`, watchColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	records, err := r.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// WatchedTitleIDs returns the distinct titles the user has any record on.
func (r *WatchRepository) WatchedTitleIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT title_id FROM watch_records WHERE user_id = $1`, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "watched titles query", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.KindDependency, "scan watched title id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ProgressForEpisodes returns the user's records for the given episodes,
// keyed by episode id. One batched query for prefetch overlays.
func (r *WatchRepository) ProgressForEpisodes(ctx context.Context, userID string, episodeIDs []string) (map[string]models.WatchRecord, error) {
	if len(episodeIDs) == 0 {
		return map[string]models.WatchRecord{}, nil
	}
	query := fmt.Sprintf(`
		SELECT %s FROM watch_records w
		WHERE w.user_id = $1 AND w.episode_id = ANY($2)`, watchColumns)
	records, err := r.queryRecords(ctx, query, userID, pq.Array(episodeIDs))
	if err != nil {
		return nil, err
	}
	result := make(map[string]models.WatchRecord, len(records))
	for _, w := range records {
		result[w.EpisodeID] = w
	}
	return result, nil
}

// AvgEpisodesPerSession computes the user's rolling average of distinct
// episodes watched per active day over the given window.
func (r *WatchRepository) AvgEpisodesPerSession(ctx context.Context, userID string, since time.Time) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT AVG(episodes_per_day) FROM (
			SELECT COUNT(DISTINCT episode_id)::float AS episodes_per_day
			FROM watch_records
			WHERE user_id = $1 AND last_watched_at >= $2
			GROUP BY DATE(last_watched_at)
		) daily`, userID, since).Scan(&avg)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDependency, "avg episodes per session", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// ClearHistory bulk deletes the user's records, optionally narrowed to one
// title or to records older than the cutoff. Returns the number deleted.
func (r *WatchRepository) ClearHistory(ctx context.Context, userID, titleID string, olderThan *time.Time) (int64, error) {
	where := "user_id = $1"
	args := []any{userID}
	argIdx := 2
	if titleID != "" {
		where += fmt.Sprintf(" AND title_id = $%d", argIdx)
		args = append(args, titleID)
		argIdx++
	}
	if olderThan != nil {
		where += fmt.Sprintf(" AND last_watched_at < $%d", argIdx)
		args = append(args, *olderThan)
		argIdx++
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM watch_records WHERE "+where, args...)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDependency, "clear history", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

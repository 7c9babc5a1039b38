package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/models"
)

// EpisodeRepository handles database operations for episodes.
type EpisodeRepository struct {
	db *sql.DB
}

// NewEpisodeRepository creates a new EpisodeRepository.
func NewEpisodeRepository(db *sql.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

const episodeColumns = `
	e.id, e.title_id, e.season_number, e.episode_number, e.title, e.description,
	e.duration, e.thumbnail_url, e.video_url, e.status, e.quality_variants,
	e.preload_enabled, e.preload_duration, e.chunk_size, e.adaptive_bitrate,
	e.total_views, e.total_watch_time, e.completion_rate, e.drop_off_points,
	e.total_likes, e.created_at, e.updated_at`

func scanEpisode(row interface{ Scan(...any) error }) (*models.Episode, error) {
	var e models.Episode
	var variants, dropOffs []byte
	err := row.Scan(
		&e.ID, &e.TitleID, &e.SeasonNumber, &e.EpisodeNumber, &e.Title,
		&e.Description, &e.Duration, &e.ThumbnailURL, &e.VideoURL, &e.Status,
		&variants,
		&e.Streaming.PreloadEnabled, &e.Streaming.PreloadDuration,
		&e.Streaming.ChunkSize, &e.Streaming.AdaptiveBitrate,
		&e.Analytics.TotalViews, &e.Analytics.TotalWatchTime,
		&e.Analytics.CompletionRate, &dropOffs, &e.Analytics.TotalLikes,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(variants) > 0 {
		_ = json.Unmarshal(variants, &e.QualityVariants)
	}
	if len(dropOffs) > 0 {
		_ = json.Unmarshal(dropOffs, &e.Analytics.DropOffPoints)
	}
	return &e, nil
}

func (r *EpisodeRepository) queryEpisodes(ctx context.Context, query string, args ...any) ([]models.Episode, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "episode query failed", err)
	}
	defer rows.Close()

	episodes := make([]models.Episode, 0)
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDependency, "scan episode row", err)
		}
		episodes = append(episodes, *e)
	}
	return episodes, rows.Err()
}

// GetByID returns one episode by id.
func (r *EpisodeRepository) GetByID(ctx context.Context, id string) (*models.Episode, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM episodes e WHERE e.id = $1", episodeColumns), id)
	e, err := scanEpisode(row)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrEpisodeNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "get episode", err)
	}
	return e, nil
}

// FirstEpisodes returns, for each given title, its published episode with the
// lowest (season, episode) pair, keyed by title id. One batched query, no N+1.
func (r *EpisodeRepository) FirstEpisodes(ctx context.Context, titleIDs []string) (map[string]models.Episode, error) {
	if len(titleIDs) == 0 {
		return map[string]models.Episode{}, nil
	}
	query := fmt.Sprintf(`
		SELECT %s FROM (
			SELECT DISTINCT ON (title_id) *
			FROM episodes
			WHERE title_id = ANY($1) AND status = 'published'
			ORDER BY title_id, season_number, episode_number
		) e`, episodeColumns)

	episodes, err := r.queryEpisodes(ctx, query, pq.Array(titleIDs))
	if err != nil {
		return nil, err
	}
	result := make(map[string]models.Episode, len(episodes))
	for _, e := range episodes {
		result[e.TitleID] = e
	}
	return result, nil
}

// EpisodesAfter returns up to limit published episodes of a title that come
// strictly after (season, number) in sequence order.
func (r *EpisodeRepository) EpisodesAfter(ctx context.Context, titleID string, season, number, limit int) ([]models.Episode, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM episodes e
		WHERE e.title_id = $1 AND e.status = 'published'
		  AND (e.season_number, e.episode_number) > ($2, $3)
		ORDER BY e.season_number, e.episode_number
		LIMIT $4`, episodeColumns)
	return r.queryEpisodes(ctx, query, titleID, season, number, limit)
}

// ListByTitle returns published episodes of a title in sequence order,
// optionally narrowed to a season, with the total count for pagination.
func (r *EpisodeRepository) ListByTitle(ctx context.Context, titleID string, season, page, limit int) ([]models.Episode, int, error) {
	where := "e.title_id = $1 AND e.status = 'published'"
	args := []any{titleID}
	argIdx := 2
	if season > 0 {
		where += fmt.Sprintf(" AND e.season_number = $%d", argIdx)
		args = append(args, season)
		argIdx++
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM episodes e WHERE %s", where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.KindDependency, "episode count failed", err)
	}

	offset := (page - 1) * limit
	query := fmt.Sprintf(`
		SELECT %s FROM episodes e
		WHERE %s
		ORDER BY e.season_number, e.episode_number
		LIMIT $%d OFFSET $%d`, episodeColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	episodes, err := r.queryEpisodes(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return episodes, total, nil
}

// AdjustLikes moves the like counter by delta, never below zero.
func (r *EpisodeRepository) AdjustLikes(ctx context.Context, id string, delta int) (int64, error) {
	var likes int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE episodes SET total_likes = GREATEST(total_likes + $1, 0), updated_at = NOW()
		WHERE id = $2
		RETURNING total_likes`, delta, id).Scan(&likes)
	if err == sql.ErrNoRows {
		return 0, apperr.ErrEpisodeNotFound
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDependency, "adjust episode likes", err)
	}
	return likes, nil
}

// IncrementViews bumps the view counter for an episode.
func (r *EpisodeRepository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE episodes SET total_views = total_views + 1, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// AddWatchTime accumulates seconds of watch time on an episode.
func (r *EpisodeRepository) AddWatchTime(ctx context.Context, id string, seconds int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE episodes SET total_watch_time = total_watch_time + $1, updated_at = NOW() WHERE id = $2`,
		seconds, id)
	return err
}

// RefreshCompletionRate recomputes an episode's completion rate as the
// fraction of its watch records that reached completion.
func (r *EpisodeRepository) RefreshCompletionRate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE episodes SET completion_rate = COALESCE((
			SELECT COUNT(*) FILTER (WHERE is_completed)::float / COUNT(*)::float * 100
			FROM watch_records WHERE episode_id = $1
		), 0), updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

// Upsert inserts or updates an episode (admin surface).
func (r *EpisodeRepository) Upsert(ctx context.Context, e *models.Episode) error {
	variants, err := json.Marshal(e.QualityVariants)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "encode quality variants", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO episodes (id, title_id, season_number, episode_number, title,
			description, duration, thumbnail_url, video_url, status,
			quality_variants, preload_enabled, preload_duration, chunk_size,
			adaptive_bitrate, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			duration = EXCLUDED.duration,
			thumbnail_url = EXCLUDED.thumbnail_url,
			video_url = EXCLUDED.video_url,
			status = EXCLUDED.status,
			quality_variants = EXCLUDED.quality_variants,
			preload_enabled = EXCLUDED.preload_enabled,
			preload_duration = EXCLUDED.preload_duration,
			chunk_size = EXCLUDED.chunk_size,
			adaptive_bitrate = EXCLUDED.adaptive_bitrate,
			updated_at = NOW()`,
		e.ID, e.TitleID, e.SeasonNumber, e.EpisodeNumber, e.Title, e.Description,
		e.Duration, e.ThumbnailURL, e.VideoURL, e.Status, variants,
		e.Streaming.PreloadEnabled, e.Streaming.PreloadDuration,
		e.Streaming.ChunkSize, e.Streaming.AdaptiveBitrate)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "upsert episode", err)
	}
	return nil
}

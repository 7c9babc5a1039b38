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

// TitleRepository handles database operations for titles, including the
// four candidate-pool queries that feed ranking.
type TitleRepository struct {
	db *sql.DB
}

// NewTitleRepository creates a new TitleRepository.
func NewTitleRepository(db *sql.DB) *TitleRepository {
	return &TitleRepository{db: db}
}

const titleColumns = `
	t.id, t.title, t.description, t.genres, t.languages, t.type, t.category,
	t.age_rating, t.tags, t.cast_members, t.director, t.premium,
	t.published_at, t.status, t.geographic_restrictions,
	t.total_views, t.total_likes, t.total_shares, t.average_rating,
	t.total_ratings, t.popularity_score, t.trending_score, t.completion_rate,
	t.is_in_random_feed, t.feed_priority, t.feed_weight, t.is_featured,
	t.is_editors_pick, t.created_at, t.updated_at`

func scanTitle(row interface{ Scan(...any) error }) (*models.Title, error) {
	var t models.Title
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, pq.Array(&t.Genres), pq.Array(&t.Languages),
		&t.Type, &t.Category, &t.AgeRating, pq.Array(&t.Tags), pq.Array(&t.CastMembers),
		&t.Director, &t.Premium, &t.PublishedAt, &t.Status,
		pq.Array(&t.Feed.GeographicRestrictions),
		&t.Analytics.TotalViews, &t.Analytics.TotalLikes, &t.Analytics.TotalShares,
		&t.Analytics.AverageRating, &t.Analytics.TotalRatings,
		&t.Analytics.PopularityScore, &t.Analytics.TrendingScore,
		&t.Analytics.CompletionRate,
		&t.Feed.IsInRandomFeed, &t.Feed.FeedPriority, &t.Feed.FeedWeight,
		&t.Feed.IsFeatured, &t.Feed.IsEditorsPick,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TitleRepository) queryTitles(ctx context.Context, query string, args ...any) ([]models.Title, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "title query failed", err)
	}
	defer rows.Close()

	titles := make([]models.Title, 0)
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDependency, "scan title row", err)
		}
		titles = append(titles, *t)
	}
	return titles, rows.Err()
}

// GetByID returns one title by id regardless of status.
func (r *TitleRepository) GetByID(ctx context.Context, id string) (*models.Title, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM titles t WHERE t.id = $1", titleColumns), id)
	t, err := scanTitle(row)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrTitleNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "get title", err)
	}
	return t, nil
}

// PoolFilter is the base predicate shared by every candidate pool:
// published, in the random feed, optionally excluding watched titles and
// narrowed to the user's preferred genres/languages.
type PoolFilter struct {
	Genres          []string
	Languages       []string
	ExcludeTitleIDs []string
	Limit           int
}

// whereBase builds the base predicate WHERE clause and argument list.
func (f PoolFilter) whereBase(extra ...string) (string, []any) {
	where := "t.status = 'published' AND t.is_in_random_feed = TRUE"
	args := []any{}
	argIdx := 1

	if len(f.ExcludeTitleIDs) > 0 {
		where += fmt.Sprintf(" AND t.id <> ALL($%d)", argIdx)
		args = append(args, pq.Array(f.ExcludeTitleIDs))
		argIdx++
	}
	for _, clause := range extra {
		where += fmt.Sprintf(" AND "+clause, argIdx)
		argIdx++
	}
	return where, args
}

// PersonalizedPool returns titles matching the user's preferred genres and
// languages, ordered by feed priority then popularity. Empty preferences
// skip the corresponding filter.
func (r *TitleRepository) PersonalizedPool(ctx context.Context, f PoolFilter) ([]models.Title, error) {
	where, args := f.whereBase()
	argIdx := len(args) + 1

	if len(f.Genres) > 0 {
		where += fmt.Sprintf(" AND t.genres && $%d", argIdx)
		args = append(args, pq.Array(f.Genres))
		argIdx++
	}
	if len(f.Languages) > 0 {
		where += fmt.Sprintf(" AND t.languages && $%d", argIdx)
		args = append(args, pq.Array(f.Languages))
		argIdx++
	}

	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE %s
		ORDER BY t.feed_priority DESC, t.popularity_score DESC, t.id
		LIMIT $%d`, titleColumns, where, argIdx)
	args = append(args, f.Limit)

	return r.queryTitles(ctx, query, args...)
}

// TrendingPool returns titles published in the last window, by trending score.
func (r *TitleRepository) TrendingPool(ctx context.Context, f PoolFilter, since time.Time) ([]models.Title, error) {
	where, args := f.whereBase("t.published_at >= $%d")
	args = append(args, since)
	argIdx := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE %s
		ORDER BY t.trending_score DESC, t.id
		LIMIT $%d`, titleColumns, where, argIdx)
	args = append(args, f.Limit)

	return r.queryTitles(ctx, query, args...)
}

// PopularPool returns titles by popularity score.
func (r *TitleRepository) PopularPool(ctx context.Context, f PoolFilter) ([]models.Title, error) {
	where, args := f.whereBase()
	argIdx := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE %s
		ORDER BY t.popularity_score DESC, t.id
		LIMIT $%d`, titleColumns, where, argIdx)
	args = append(args, f.Limit)

	return r.queryTitles(ctx, query, args...)
}

// FreshPool returns recently published titles, newest first.
func (r *TitleRepository) FreshPool(ctx context.Context, f PoolFilter, since time.Time) ([]models.Title, error) {
	where, args := f.whereBase("t.published_at >= $%d")
	args = append(args, since)
	argIdx := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE %s
		ORDER BY t.published_at DESC, t.id
		LIMIT $%d`, titleColumns, where, argIdx)
	args = append(args, f.Limit)

	return r.queryTitles(ctx, query, args...)
}

// Featured returns published featured titles by popularity.
func (r *TitleRepository) Featured(ctx context.Context, limit int) ([]models.Title, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE t.status = 'published' AND t.is_featured = TRUE
		ORDER BY t.popularity_score DESC, t.id
		LIMIT $1`, titleColumns)
	return r.queryTitles(ctx, query, limit)
}

// EditorsPicks returns published editors-pick titles by feed priority.
func (r *TitleRepository) EditorsPicks(ctx context.Context, limit int) ([]models.Title, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE t.status = 'published' AND t.is_editors_pick = TRUE
		ORDER BY t.feed_priority DESC, t.popularity_score DESC, t.id
		LIMIT $1`, titleColumns)
	return r.queryTitles(ctx, query, limit)
}

// PopularByGenre returns published titles of a genre by popularity,
// optionally narrowed to a language.
func (r *TitleRepository) PopularByGenre(ctx context.Context, genre, language string, limit int) ([]models.Title, error) {
	where := "t.status = 'published' AND $1 = ANY(t.genres)"
	args := []any{genre}
	argIdx := 2
	if language != "" {
		where += fmt.Sprintf(" AND $%d = ANY(t.languages)", argIdx)
		args = append(args, language)
		argIdx++
	}
	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE %s
		ORDER BY t.popularity_score DESC, t.id
		LIMIT $%d`, titleColumns, where, argIdx)
	args = append(args, limit)
	return r.queryTitles(ctx, query, args...)
}

// Similar returns published titles sharing the source title's category,
// genre, cast or director, excluding the source, by popularity.
func (r *TitleRepository) Similar(ctx context.Context, src *models.Title, limit int) ([]models.Title, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE t.status = 'published' AND t.id <> $1
		  AND (t.category = $2
			OR t.genres && $3
			OR t.cast_members && $4
			OR (t.director <> '' AND t.director = $5))
		ORDER BY t.popularity_score DESC, t.id
		LIMIT $6`, titleColumns)
	return r.queryTitles(ctx, query,
		src.ID, src.Category, pq.Array(src.Genres), pq.Array(src.CastMembers),
		src.Director, limit)
}

// Search performs a case-insensitive substring match over title, description,
// tags, cast and director, with optional genre/language/type narrowing.
func (r *TitleRepository) Search(ctx context.Context, p models.SearchParams) ([]models.Title, int, error) {
	pattern := "%" + p.Query + "%"
	where := `t.status = 'published' AND (
		t.title ILIKE $1 OR t.description ILIKE $1
		OR EXISTS (SELECT 1 FROM unnest(t.tags) tag WHERE tag ILIKE $1)
		OR EXISTS (SELECT 1 FROM unnest(t.cast_members) cm WHERE cm ILIKE $1)
		OR t.director ILIKE $1)`
	args := []any{pattern}
	argIdx := 2

	if p.Genre != "" {
		where += fmt.Sprintf(" AND $%d = ANY(t.genres)", argIdx)
		args = append(args, p.Genre)
		argIdx++
	}
	if p.Language != "" {
		where += fmt.Sprintf(" AND $%d = ANY(t.languages)", argIdx)
		args = append(args, p.Language)
		argIdx++
	}
	if p.Type != "" {
		where += fmt.Sprintf(" AND t.type = $%d", argIdx)
		args = append(args, p.Type)
		argIdx++
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM titles t WHERE %s", where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(apperr.KindDependency, "search count failed", err)
	}

	offset := (p.Page - 1) * p.Limit
	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE %s
		ORDER BY t.popularity_score DESC, t.id
		LIMIT $%d OFFSET $%d`, titleColumns, where, argIdx, argIdx+1)
	args = append(args, p.Limit, offset)

	titles, err := r.queryTitles(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return titles, total, nil
}

// IncrementViews bumps the view counter for a title.
func (r *TitleRepository) IncrementViews(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE titles SET total_views = total_views + 1, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// AdjustLikes moves the like counter by delta, never below zero.
func (r *TitleRepository) AdjustLikes(ctx context.Context, id string, delta int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE titles SET total_likes = GREATEST(total_likes + $1, 0), updated_at = NOW() WHERE id = $2`,
		delta, id)
	return err
}

// IncrementShares bumps the share counter for a title.
func (r *TitleRepository) IncrementShares(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE titles SET total_shares = total_shares + 1, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// RefreshCompletionRate recomputes a title's completion rate as the fraction
// of its watch records that reached completion.
func (r *TitleRepository) RefreshCompletionRate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE titles SET completion_rate = COALESCE((
			SELECT COUNT(*) FILTER (WHERE is_completed)::float / COUNT(*)::float * 100
			FROM watch_records WHERE title_id = $1
		), 0), updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

// Upsert inserts or updates a title (admin surface).
func (r *TitleRepository) Upsert(ctx context.Context, t *models.Title) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO titles (id, title, description, genres, languages, type,
			category, age_rating, tags, cast_members, director, premium,
			published_at, status, geographic_restrictions, trending_score,
			popularity_score, is_in_random_feed, feed_priority, feed_weight,
			is_featured, is_editors_pick, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			genres = EXCLUDED.genres,
			languages = EXCLUDED.languages,
			type = EXCLUDED.type,
			category = EXCLUDED.category,
			age_rating = EXCLUDED.age_rating,
			tags = EXCLUDED.tags,
			cast_members = EXCLUDED.cast_members,
			director = EXCLUDED.director,
			premium = EXCLUDED.premium,
			published_at = EXCLUDED.published_at,
			status = EXCLUDED.status,
			geographic_restrictions = EXCLUDED.geographic_restrictions,
			trending_score = EXCLUDED.trending_score,
			popularity_score = EXCLUDED.popularity_score,
			is_in_random_feed = EXCLUDED.is_in_random_feed,
			feed_priority = EXCLUDED.feed_priority,
			feed_weight = EXCLUDED.feed_weight,
			is_featured = EXCLUDED.is_featured,
			is_editors_pick = EXCLUDED.is_editors_pick,
			updated_at = NOW()`,
		t.ID, t.Title, t.Description, pq.Array(t.Genres), pq.Array(t.Languages),
		t.Type, t.Category, t.AgeRating, pq.Array(t.Tags), pq.Array(t.CastMembers),
		t.Director, t.Premium, t.PublishedAt, t.Status,
		pq.Array(t.Feed.GeographicRestrictions), t.Analytics.TrendingScore,
		t.Analytics.PopularityScore, t.Feed.IsInRandomFeed, t.Feed.FeedPriority,
		t.Feed.FeedWeight, t.Feed.IsFeatured, t.Feed.IsEditorsPick)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "upsert title", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/models"
)

// UserRepository handles database operations for users.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns one user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	var favoriteGenres []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, premium, preferred_genres, preferred_languages, auto_play,
			data_usage, total_watch_time, videos_watched,
			average_session_duration, favorite_genres, likes, shares,
			swipe_right, swipe_left, average_video_completion,
			created_at, updated_at
		FROM users WHERE id = $1`, id).Scan(
		&u.ID, &u.Premium, pq.Array(&u.Preferences.PreferredGenres),
		pq.Array(&u.Preferences.PreferredLanguages), &u.Preferences.AutoPlay,
		&u.Preferences.DataUsage, &u.Analytics.TotalWatchTime,
		&u.Analytics.VideosWatched, &u.Analytics.AverageSessionDuration,
		&favoriteGenres, &u.Engagement.Likes, &u.Engagement.Shares,
		&u.Engagement.SwipeRight, &u.Engagement.SwipeLeft,
		&u.Engagement.AverageVideoCompletion, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "get user", err)
	}
	if len(favoriteGenres) > 0 {
		_ = json.Unmarshal(favoriteGenres, &u.Analytics.FavoriteGenres)
	}
	return &u, nil
}

// Ensure creates the user row if it does not exist yet. Anonymous clients
// mint their own stable ids, so first contact happens on any endpoint.
func (r *UserRepository) Ensure(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "ensure user", err)
	}
	return nil
}

// UpdatePreferences replaces the user's feed preferences.
func (r *UserRepository) UpdatePreferences(ctx context.Context, id string, p models.UserPreferences) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			preferred_genres = $1,
			preferred_languages = $2,
			auto_play = $3,
			data_usage = $4,
			updated_at = NOW()
		WHERE id = $5`,
		pq.Array(p.PreferredGenres), pq.Array(p.PreferredLanguages),
		p.AutoPlay, p.DataUsage, id)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "update preferences", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

// AddWatchTime accumulates viewing time and bumps the watched counter.
func (r *UserRepository) AddWatchTime(ctx context.Context, id string, seconds int64, completedVideo bool) error {
	videos := 0
	if completedVideo {
		videos = 1
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			total_watch_time = total_watch_time + $1,
			videos_watched = videos_watched + $2,
			updated_at = NOW()
		WHERE id = $3`, seconds, videos, id)
	return err
}

// AdjustLikes moves the user's like counter by delta, never below zero.
func (r *UserRepository) AdjustLikes(ctx context.Context, id string, delta int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET likes = GREATEST(likes + $1, 0), updated_at = NOW() WHERE id = $2`,
		delta, id)
	return err
}

// IncrementShares bumps the user's share counter.
func (r *UserRepository) IncrementShares(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET shares = shares + 1, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// RecordSwipe bumps the swipe counters from client navigation events.
func (r *UserRepository) RecordSwipe(ctx context.Context, id string, right bool) error {
	column := "swipe_left"
	if right {
		column = "swipe_right"
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+column+` = `+column+` + 1, updated_at = NOW() WHERE id = $1`, id)
	return err
}

package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"shortreel-backend/internal/config"
)

// NewPostgres creates a new PostgreSQL connection and runs migrations.
func NewPostgres(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS titles (
			id TEXT PRIMARY KEY,
			title VARCHAR(500) NOT NULL,
			description TEXT DEFAULT '',
			genres TEXT[] DEFAULT '{}',
			languages TEXT[] DEFAULT '{}',
			type VARCHAR(20) DEFAULT 'series',
			category VARCHAR(100) DEFAULT '',
			age_rating VARCHAR(20) DEFAULT '',
			tags TEXT[] DEFAULT '{}',
			cast_members TEXT[] DEFAULT '{}',
			director VARCHAR(200) DEFAULT '',
			premium BOOLEAN DEFAULT FALSE,
			published_at TIMESTAMPTZ,
			status VARCHAR(20) DEFAULT 'draft',
			geographic_restrictions TEXT[] DEFAULT '{}',
			total_views BIGINT DEFAULT 0,
			total_likes BIGINT DEFAULT 0,
			total_shares BIGINT DEFAULT 0,
			average_rating DOUBLE PRECISION DEFAULT 0,
			total_ratings BIGINT DEFAULT 0,
			popularity_score DOUBLE PRECISION DEFAULT 0,
			trending_score DOUBLE PRECISION DEFAULT 0,
			completion_rate DOUBLE PRECISION DEFAULT 0,
			is_in_random_feed BOOLEAN DEFAULT TRUE,
			feed_priority INTEGER DEFAULT 5,
			feed_weight DOUBLE PRECISION DEFAULT 1,
			is_featured BOOLEAN DEFAULT FALSE,
			is_editors_pick BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			title_id TEXT NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
			season_number INTEGER NOT NULL DEFAULT 1,
			episode_number INTEGER NOT NULL DEFAULT 1,
			title VARCHAR(500) DEFAULT '',
			description TEXT DEFAULT '',
			duration INTEGER DEFAULT 0,
			thumbnail_url VARCHAR(1000) DEFAULT '',
			video_url VARCHAR(1000) DEFAULT '',
			status VARCHAR(20) DEFAULT 'draft',
			quality_variants JSONB DEFAULT '[]',
			preload_enabled BOOLEAN DEFAULT TRUE,
			preload_duration INTEGER DEFAULT 10,
			chunk_size INTEGER DEFAULT 1048576,
			adaptive_bitrate BOOLEAN DEFAULT TRUE,
			total_views BIGINT DEFAULT 0,
			total_watch_time BIGINT DEFAULT 0,
			completion_rate DOUBLE PRECISION DEFAULT 0,
			drop_off_points JSONB DEFAULT '[]',
			total_likes BIGINT DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (title_id, season_number, episode_number)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			premium BOOLEAN DEFAULT FALSE,
			preferred_genres TEXT[] DEFAULT '{}',
			preferred_languages TEXT[] DEFAULT '{}',
			auto_play BOOLEAN DEFAULT TRUE,
			data_usage VARCHAR(10) DEFAULT 'medium',
			total_watch_time BIGINT DEFAULT 0,
			videos_watched BIGINT DEFAULT 0,
			average_session_duration DOUBLE PRECISION DEFAULT 0,
			favorite_genres JSONB DEFAULT '[]',
			likes BIGINT DEFAULT 0,
			shares BIGINT DEFAULT 0,
			swipe_right BIGINT DEFAULT 0,
			swipe_left BIGINT DEFAULT 0,
			average_video_completion DOUBLE PRECISION DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS watch_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title_id TEXT NOT NULL,
			episode_id TEXT NOT NULL,
			season_number INTEGER DEFAULT 1,
			episode_number INTEGER DEFAULT 1,
			current_position INTEGER DEFAULT 0,
			total_duration INTEGER DEFAULT 0,
			percentage_watched DOUBLE PRECISION DEFAULT 0,
			is_completed BOOLEAN DEFAULT FALSE,
			status VARCHAR(20) DEFAULT 'watching',
			watched_via VARCHAR(30) DEFAULT '',
			rating INTEGER,
			liked BOOLEAN DEFAULT FALSE,
			shared BOOLEAN DEFAULT FALSE,
			started_at TIMESTAMPTZ DEFAULT NOW(),
			last_watched_at TIMESTAMPTZ DEFAULT NOW(),
			completed_at TIMESTAMPTZ,
			total_sessions INTEGER DEFAULT 0,
			average_session_length DOUBLE PRECISION DEFAULT 0,
			session_duration BIGINT DEFAULT 0,
			pause_count INTEGER DEFAULT 0,
			seek_count INTEGER DEFAULT 0,
			buffering_time BIGINT DEFAULT 0,
			UNIQUE (user_id, episode_id)
		)`,
		`CREATE TABLE IF NOT EXISTS analytics_events (
			id TEXT PRIMARY KEY,
			user_id TEXT DEFAULT '',
			event_type VARCHAR(30) NOT NULL,
			category VARCHAR(30) NOT NULL,
			content_id TEXT DEFAULT '',
			episode_id TEXT DEFAULT '',
			session_id TEXT DEFAULT '',
			event_data JSONB DEFAULT '{}',
			device_info JSONB DEFAULT '{}',
			location VARCHAR(100) DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		// Indexes for the feed, progress and analytics query patterns
		`CREATE INDEX IF NOT EXISTS idx_titles_feed ON titles(status, is_in_random_feed, feed_priority DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_titles_genres ON titles USING GIN(genres)`,
		`CREATE INDEX IF NOT EXISTS idx_titles_languages ON titles USING GIN(languages)`,
		`CREATE INDEX IF NOT EXISTS idx_titles_popularity ON titles(popularity_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_titles_published_at ON titles(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_title_status ON episodes(title_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_ordering ON episodes(title_id, season_number, episode_number)`,
		`CREATE INDEX IF NOT EXISTS idx_watch_user_recent ON watch_records(user_id, last_watched_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_watch_title_completed ON watch_records(title_id, is_completed)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_time ON analytics_events(user_id, created_at DESC)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Info("database migrations completed")
	return nil
}

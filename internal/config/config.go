package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the backend, read once at startup.
type Config struct {
	DB        DBConfig
	Redis     RedisConfig
	Port      string
	JWTSecret string

	RateLimit RateLimitConfig
	Cache     CacheConfig
	Feed      FeedConfig
	Prefetch  PrefetchConfig
	Scoring   ScoringConfig
}

// DBConfig holds PostgreSQL configuration.
type DBConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLRootCert string
}

// DSN returns the PostgreSQL connection string.
func (d DBConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
	if d.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", d.SSLRootCert)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// RateLimitConfig holds the fixed-window rate limiter settings.
type RateLimitConfig struct {
	MaxRequests int
	WindowSec   int
}

// CacheConfig holds the cache TTL tiers in seconds.
type CacheConfig struct {
	ShortTTL    int // 300
	MediumTTL   int // 1800
	LongTTL     int // 3600
	VeryLongTTL int // 7200
}

// FeedConfig holds feed assembly knobs.
type FeedConfig struct {
	CompletionThreshold float64 // percentage at which an episode counts as completed
	ContinueMinPercent  float64
	ContinueMaxPercent  float64
}

// PrefetchConfig holds prefetch planner defaults.
type PrefetchConfig struct {
	MaxCards        int // cards per page that receive a plan
	EpisodesPerCard int
	DefaultQuality  string
}

// ScoringConfig holds the feed scoring weights. These are tuned to the
// current catalog shape and deliberately live in configuration.
type ScoringConfig struct {
	PopularityWeight   float64
	TrendingWeight     float64
	PriorityWeight     float64
	FeedWeightFactor   float64
	GenreMatchBonus    float64
	LanguageMatchBonus float64
	FreshBonus         float64 // published within 7 days
	RecentBonus        float64 // published within 30 days
	CompletionWeight   float64
	JitterMax          float64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "shortreel"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SSLRootCert: getEnv("DB_SSLROOTCERT", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TLS:      getEnvBool("REDIS_TLS", false),
		},
		Port:      getEnv("SERVER_PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		RateLimit: RateLimitConfig{
			MaxRequests: getEnvInt("RATE_LIMIT_MAX", 120),
			WindowSec:   getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		},
		Cache: CacheConfig{
			ShortTTL:    getEnvInt("CACHE_TTL_SHORT", 300),
			MediumTTL:   getEnvInt("CACHE_TTL_MEDIUM", 1800),
			LongTTL:     getEnvInt("CACHE_TTL_LONG", 3600),
			VeryLongTTL: getEnvInt("CACHE_TTL_VERY_LONG", 7200),
		},
		Feed: FeedConfig{
			CompletionThreshold: getEnvFloat("COMPLETION_THRESHOLD", 80),
			ContinueMinPercent:  getEnvFloat("CONTINUE_MIN_PERCENT", 5),
			ContinueMaxPercent:  getEnvFloat("CONTINUE_MAX_PERCENT", 80),
		},
		Prefetch: PrefetchConfig{
			MaxCards:        getEnvInt("PREFETCH_MAX_CARDS", 7),
			EpisodesPerCard: getEnvInt("PREFETCH_EPISODES_PER_CARD", 5),
			DefaultQuality:  getEnv("PREFETCH_QUALITY", "480p"),
		},
		Scoring: ScoringConfig{
			PopularityWeight:   getEnvFloat("SCORE_POPULARITY_WEIGHT", 0.3),
			TrendingWeight:     getEnvFloat("SCORE_TRENDING_WEIGHT", 0.2),
			PriorityWeight:     getEnvFloat("SCORE_PRIORITY_WEIGHT", 10),
			FeedWeightFactor:   getEnvFloat("SCORE_FEED_WEIGHT_FACTOR", 5),
			GenreMatchBonus:    getEnvFloat("SCORE_GENRE_MATCH_BONUS", 20),
			LanguageMatchBonus: getEnvFloat("SCORE_LANGUAGE_MATCH_BONUS", 15),
			FreshBonus:         getEnvFloat("SCORE_FRESH_BONUS", 10),
			RecentBonus:        getEnvFloat("SCORE_RECENT_BONUS", 5),
			CompletionWeight:   getEnvFloat("SCORE_COMPLETION_WEIGHT", 0.1),
			JitterMax:          getEnvFloat("SCORE_JITTER_MAX", 10),
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

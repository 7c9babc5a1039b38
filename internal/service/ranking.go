package service

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"shortreel-backend/internal/config"
	"shortreel-backend/internal/models"
)

// Ranker merges candidate-pool output into a scored, diversified feed page.
type Ranker struct {
	cfg config.ScoringConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRanker creates a Ranker. rng may be nil, in which case a time-seeded
// source is used; tests inject a fixed seed.
func NewRanker(cfg config.ScoringConfig, rng *rand.Rand) *Ranker {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Ranker{cfg: cfg, rng: rng}
}

// Rank deduplicates, scores, sorts, shuffles and slices the concatenated
// pool output. The input order (personalized, trending, popular, fresh)
// decides which pool a duplicated title is attributed to: first wins.
//
// The sort runs before the shuffle on purpose. Sorting establishes the
// quality tier of the page; the Fisher-Yates pass then breaks positional
// repetition between requests, so two identical calls return the same set
// of titles in varying order.
func (r *Ranker) Rank(candidates []models.ScoredTitle, prefs models.UserPreferences, offset, limit int) []models.ScoredTitle {
	deduped := dedupeByTitleID(candidates)

	now := time.Now()
	for i := range deduped {
		deduped[i].Score = r.score(&deduped[i].Title, prefs, now)
	}

	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].Score != deduped[j].Score {
			return deduped[i].Score > deduped[j].Score
		}
		return deduped[i].Title.ID < deduped[j].Title.ID
	})

	r.shuffle(deduped)

	if offset >= len(deduped) {
		return []models.ScoredTitle{}
	}
	end := offset + limit
	if end > len(deduped) {
		end = len(deduped)
	}
	return deduped[offset:end]
}

// score computes the weighted feed score for one title, including the
// uniform jitter term that prevents stable repetition across requests.
func (r *Ranker) score(t *models.Title, prefs models.UserPreferences, now time.Time) float64 {
	c := r.cfg
	score := c.PopularityWeight*t.Analytics.PopularityScore +
		c.TrendingWeight*t.Analytics.TrendingScore +
		c.PriorityWeight*float64(t.Feed.FeedPriority) +
		c.FeedWeightFactor*t.Feed.FeedWeight

	if anyOverlap(t.Genres, prefs.PreferredGenres) {
		score += c.GenreMatchBonus
	}
	if anyOverlap(t.Languages, prefs.PreferredLanguages) {
		score += c.LanguageMatchBonus
	}

	if t.PublishedAt != nil {
		days := now.Sub(*t.PublishedAt).Hours() / 24
		if days < 7 {
			score += c.FreshBonus
		} else if days < 30 {
			score += c.RecentBonus
		}
	}

	score += c.CompletionWeight * t.Analytics.CompletionRate
	score += r.randFloat() * c.JitterMax

	return score
}

// shuffle applies Fisher-Yates over the scored slice.
func (r *Ranker) shuffle(titles []models.ScoredTitle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(titles) - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		titles[i], titles[j] = titles[j], titles[i]
	}
}

func (r *Ranker) randFloat() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// dedupeByTitleID keeps the first occurrence of each title id.
func dedupeByTitleID(candidates []models.ScoredTitle) []models.ScoredTitle {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]models.ScoredTitle, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Title.ID]; ok {
			continue
		}
		seen[c.Title.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func anyOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	for _, s := range a {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// poolSplit returns the per-pool candidate counts for a page of size limit:
// 40% personalized, 30% trending, 20% popular, 10% fresh, each rounded up.
func poolSplit(limit int) (personalized, trending, popular, fresh int) {
	personalized = ceilFrac(limit, 0.4)
	trending = ceilFrac(limit, 0.3)
	popular = ceilFrac(limit, 0.2)
	fresh = ceilFrac(limit, 0.1)
	return
}

func ceilFrac(n int, frac float64) int {
	v := float64(n) * frac
	i := int(v)
	if v > float64(i) {
		i++
	}
	if i < 1 {
		i = 1
	}
	return i
}

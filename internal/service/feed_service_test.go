package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortreel-backend/internal/apperr"
	"shortreel-backend/internal/cache"
	"shortreel-backend/internal/config"
	"shortreel-backend/internal/models"
)

type feedFixture struct {
	svc      *FeedService
	titles   *fakeTitleStore
	episodes *fakeEpisodeStore
	users    *fakeUserStore
	watch    *fakeWatchStore
	tracker  *fakeTracker
	store    *cache.Store
}

func newFeedFixture() *feedFixture {
	f := &feedFixture{
		titles:   newFakeTitleStore(),
		episodes: newFakeEpisodeStore(),
		users:    newFakeUserStore(),
		watch:    newFakeWatchStore(),
		tracker:  &fakeTracker{},
		store:    cache.New(nil),
	}
	ranker := NewRanker(testScoringConfig(), rand.New(rand.NewSource(1)))
	prefetch := NewPrefetchService(f.episodes, f.watch, f.store, testPrefetchConfig())
	f.svc = NewFeedService(f.titles, f.episodes, f.users, f.watch,
		f.store, f.tracker, ranker, prefetch, config.CacheConfig{
			ShortTTL: 300, MediumTTL: 1800, LongTTL: 3600, VeryLongTTL: 7200,
		})
	return f
}

func publishedTitle(id string, popularity float64) models.Title {
	now := time.Now().Add(-time.Hour)
	return models.Title{
		ID:          id,
		Title:       "Title " + id,
		Status:      models.StatusPublished,
		PublishedAt: &now,
		Analytics:   models.TitleAnalytics{PopularityScore: popularity},
		Feed:        models.FeedSettings{IsInRandomFeed: true},
	}
}

func (f *feedFixture) seedTitles(pool *[]models.Title, ids ...string) {
	for _, id := range ids {
		t := publishedTitle(id, 10)
		*pool = append(*pool, t)
		cp := t
		f.titles.byID[id] = &cp
		f.episodes.firsts[id] = models.Episode{
			ID: "first-" + id, TitleID: id, SeasonNumber: 1, EpisodeNumber: 1, Duration: 90,
		}
	}
}

func TestGetFeedAssemblesCardsFromAllPools(t *testing.T) {
	f := newFeedFixture()
	f.seedTitles(&f.titles.personalized, "p1")
	f.seedTitles(&f.titles.trending, "t1")
	f.seedTitles(&f.titles.popular, "pop1")
	f.seedTitles(&f.titles.fresh, "f1")

	page, err := f.svc.GetFeed(context.Background(), models.FeedParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Cards, 4)

	sources := map[string]bool{}
	for _, card := range page.Cards {
		sources[card.FeedSource] = true
		require.NotNil(t, card.FirstEpisode)
		assert.Equal(t, card.Title.ID, card.FirstEpisode.TitleID)
	}
	assert.True(t, sources[models.FeedSourcePersonalized])
	assert.True(t, sources[models.FeedSourceTrending])
	assert.True(t, sources[models.FeedSourcePopular])
	assert.True(t, sources[models.FeedSourceFresh])

	assert.Len(t, f.tracker.eventsOfType(models.EventContentView), 1)
}

func TestGetFeedExcludesWatchedTitles(t *testing.T) {
	f := newFeedFixture()
	f.seedTitles(&f.titles.personalized, "seen", "unseen")
	f.watch.watched = []string{"seen"}

	page, err := f.svc.GetFeed(context.Background(),
		models.FeedParams{UserID: "u1", Limit: 10, ExcludeWatched: true})
	require.NoError(t, err)

	for _, card := range page.Cards {
		assert.NotEqual(t, "seen", card.Title.ID)
	}
	require.Len(t, page.Cards, 1)
	assert.Equal(t, "unseen", page.Cards[0].Title.ID)
}

func TestGetFeedServesSecondRequestFromCache(t *testing.T) {
	f := newFeedFixture()
	f.seedTitles(&f.titles.personalized, "p1")

	params := models.FeedParams{Limit: 10}
	first, err := f.svc.GetFeed(context.Background(), params)
	require.NoError(t, err)

	f.titles.mu.Lock()
	callsAfterFirst := len(f.titles.lastPoolFilters)
	f.titles.mu.Unlock()

	second, err := f.svc.GetFeed(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, first.Count, second.Count)

	f.titles.mu.Lock()
	callsAfterSecond := len(f.titles.lastPoolFilters)
	f.titles.mu.Unlock()
	assert.Equal(t, callsAfterFirst, callsAfterSecond, "cache hit must not run the pools")
}

func TestGetFeedDropsCardsWithoutFirstEpisode(t *testing.T) {
	f := newFeedFixture()
	f.seedTitles(&f.titles.personalized, "ok")
	broken := publishedTitle("broken", 10)
	f.titles.personalized = append(f.titles.personalized, broken)

	page, err := f.svc.GetFeed(context.Background(), models.FeedParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Cards, 1)
	assert.Equal(t, "ok", page.Cards[0].Title.ID)
}

func TestGetFeedSurfacesTimeoutNeverAPartialPage(t *testing.T) {
	f := newFeedFixture()
	f.seedTitles(&f.titles.personalized, "p1")
	f.titles.poolDelay = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	page, err := f.svc.GetFeed(ctx, models.FeedParams{Limit: 10})
	assert.Nil(t, page)
	assert.ErrorIs(t, err, apperr.ErrTimeout)
}

func TestGetFeedUsesStoredPreferences(t *testing.T) {
	f := newFeedFixture()
	f.seedTitles(&f.titles.personalized, "p1")
	f.users.byID["u1"] = &models.User{
		ID: "u1",
		Preferences: models.UserPreferences{
			PreferredGenres:    []string{"drama"},
			PreferredLanguages: []string{"ms"},
		},
	}

	_, err := f.svc.GetFeed(context.Background(), models.FeedParams{UserID: "u1", Limit: 10})
	require.NoError(t, err)

	f.titles.mu.Lock()
	defer f.titles.mu.Unlock()
	var personalizedSeen bool
	for _, filter := range f.titles.lastPoolFilters {
		if len(filter.Genres) > 0 {
			personalizedSeen = true
			assert.Equal(t, []string{"drama"}, filter.Genres)
			assert.Equal(t, []string{"ms"}, filter.Languages)
		}
	}
	assert.True(t, personalizedSeen, "stored preferences must reach the personalized pool")
}

func TestGetFeedGenreOverrideBeatsStoredPreferences(t *testing.T) {
	f := newFeedFixture()
	f.seedTitles(&f.titles.personalized, "p1")
	f.users.byID["u1"] = &models.User{
		ID:          "u1",
		Preferences: models.UserPreferences{PreferredGenres: []string{"drama"}},
	}

	_, err := f.svc.GetFeed(context.Background(),
		models.FeedParams{UserID: "u1", Limit: 10, OverrideGenre: "horror"})
	require.NoError(t, err)

	f.titles.mu.Lock()
	defer f.titles.mu.Unlock()
	for _, filter := range f.titles.lastPoolFilters {
		if len(filter.Genres) > 0 {
			assert.Equal(t, []string{"horror"}, filter.Genres)
		}
	}
}

func TestSearchRejectsShortQueries(t *testing.T) {
	f := newFeedFixture()

	for _, q := range []string{"", "a", " a "} {
		_, err := f.svc.Search(context.Background(), models.SearchParams{Query: q})
		require.Error(t, err, "query %q", q)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
}

func TestSearchTracksEvent(t *testing.T) {
	f := newFeedFixture()
	f.seedTitles(&f.titles.popular, "pop1")

	result, err := f.svc.Search(context.Background(),
		models.SearchParams{Query: "pop", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalResults)
	assert.Len(t, f.tracker.eventsOfType(models.EventSearch), 1)
}

func TestGetTrendingRejectsUnknownTimeframe(t *testing.T) {
	f := newFeedFixture()

	_, err := f.svc.GetTrending(context.Background(), "90d", 10)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestGetTitleDetailsHidesUnpublished(t *testing.T) {
	f := newFeedFixture()
	draft := publishedTitle("d1", 10)
	draft.Status = models.StatusDraft
	f.titles.byID["d1"] = &draft

	_, err := f.svc.GetTitleDetails(context.Background(), "d1", "", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestGetTitleDetailsGatesPremium(t *testing.T) {
	f := newFeedFixture()
	paid := publishedTitle("prem", 10)
	paid.Premium = true
	f.titles.byID["prem"] = &paid
	f.users.byID["free"] = &models.User{ID: "free"}
	f.users.byID["payer"] = &models.User{ID: "payer", Premium: true}

	_, err := f.svc.GetTitleDetails(context.Background(), "prem", "", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindPaymentRequired, apperr.KindOf(err))

	_, err = f.svc.GetTitleDetails(context.Background(), "prem", "free", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindPaymentRequired, apperr.KindOf(err))

	details, err := f.svc.GetTitleDetails(context.Background(), "prem", "payer", "")
	require.NoError(t, err)
	assert.Equal(t, "prem", details.Title.ID)
}

func TestGetTitleDetailsBlocksRestrictedRegion(t *testing.T) {
	f := newFeedFixture()
	blocked := publishedTitle("geo", 10)
	blocked.Feed.GeographicRestrictions = []string{"CN", "KP"}
	f.titles.byID["geo"] = &blocked

	_, err := f.svc.GetTitleDetails(context.Background(), "geo", "", "cn")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	details, err := f.svc.GetTitleDetails(context.Background(), "geo", "", "MY")
	require.NoError(t, err)
	assert.Equal(t, "geo", details.Title.ID)
}

func TestGetEpisodeDetailsQualitySelection(t *testing.T) {
	f := newFeedFixture()
	parent := publishedTitle("t1", 10)
	f.titles.byID["t1"] = &parent
	ep := episodeWithVariants("e1", "t1", 1, 1, 120, "480p", "720p", "1080p")
	ep.Status = models.StatusPublished
	f.episodes.byID["e1"] = &ep

	details, err := f.svc.GetEpisodeDetails(context.Background(), "e1", "", "1080p", "")
	require.NoError(t, err)
	assert.Equal(t, "1080p", details.Quality)
	assert.Contains(t, details.StreamURL, "1080p")

	// Unknown quality falls back to 720p.
	details, err = f.svc.GetEpisodeDetails(context.Background(), "e1", "", "8k", "")
	require.NoError(t, err)
	assert.Equal(t, "720p", details.Quality)
}

func TestGetEpisodeDetailsAppliesTitleGates(t *testing.T) {
	f := newFeedFixture()
	parent := publishedTitle("t1", 10)
	parent.Premium = true
	parent.Feed.GeographicRestrictions = []string{"CN"}
	f.titles.byID["t1"] = &parent
	f.users.byID["payer"] = &models.User{ID: "payer", Premium: true}
	ep := episodeWithVariants("e1", "t1", 1, 1, 120, "720p")
	ep.Status = models.StatusPublished
	f.episodes.byID["e1"] = &ep

	_, err := f.svc.GetEpisodeDetails(context.Background(), "e1", "", "", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindPaymentRequired, apperr.KindOf(err))

	_, err = f.svc.GetEpisodeDetails(context.Background(), "e1", "payer", "", "CN")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	details, err := f.svc.GetEpisodeDetails(context.Background(), "e1", "payer", "", "MY")
	require.NoError(t, err)
	assert.Equal(t, "e1", details.Episode.ID)
}

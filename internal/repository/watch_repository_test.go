package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextRatingAggregateFirstRating(t *testing.T) {
	avg, count := nextRatingAggregate(0, 0, sql.NullInt64{}, 4)
	assert.InDelta(t, 4.0, avg, 1e-9)
	assert.EqualValues(t, 1, count)
}

func TestNextRatingAggregateAppends(t *testing.T) {
	// 4 ratings averaging 3.0, a new 5 arrives: (3*4+5)/5 = 3.4.
	avg, count := nextRatingAggregate(3.0, 4, sql.NullInt64{}, 5)
	assert.InDelta(t, 3.4, avg, 1e-9)
	assert.EqualValues(t, 5, count)
}

func TestNextRatingAggregateReplaces(t *testing.T) {
	// 5 ratings averaging 3.4, the user's previous 5 becomes a 1:
	// (3.4*5 - 5 + 1)/5 = 2.6, count unchanged.
	avg, count := nextRatingAggregate(3.4, 5, sql.NullInt64{Int64: 5, Valid: true}, 1)
	assert.InDelta(t, 2.6, avg, 1e-9)
	assert.EqualValues(t, 5, count)
}

func TestNextRatingAggregateReplaceWithSameValueIsStable(t *testing.T) {
	avg, count := nextRatingAggregate(3.4, 5, sql.NullInt64{Int64: 4, Valid: true}, 4)
	assert.InDelta(t, 3.4, avg, 1e-9)
	assert.EqualValues(t, 5, count)
}

func TestNextRatingAggregateRepairsCorruptZeroCount(t *testing.T) {
	avg, count := nextRatingAggregate(0, 0, sql.NullInt64{Int64: 3, Valid: true}, 5)
	assert.InDelta(t, 5.0, avg, 1e-9)
	assert.EqualValues(t, 1, count)
}

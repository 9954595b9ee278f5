package reviews

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverage(t *testing.T) {
	avg, ok := Average([]Review{{Rating: 4}, {Rating: 5}, {Rating: 3}})
	assert.True(t, ok)
	assert.InDelta(t, 4.0, avg, 1e-9)

	avg, ok = Average(nil)
	assert.False(t, ok)
	assert.Zero(t, avg)
}

func TestListKeyRoundTrip(t *testing.T) {
	key := ListKey("zyTCAlFPjgYC")
	assert.Equal(t, "book:zyTCAlFPjgYC:reviews", key)

	id, ok := bookIDFromKey(key)
	assert.True(t, ok)
	assert.Equal(t, "zyTCAlFPjgYC", id)

	_, ok = bookIDFromKey("review:123")
	assert.False(t, ok)
	_, ok = bookIDFromKey("book::reviews")
	assert.False(t, ok)
}

func TestReviewJSONFieldNames(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := json.Marshal(Review{
		ID:        1,
		BookID:    "b",
		User:      DemoUser,
		Rating:    5,
		Comment:   "c",
		CreatedAt: at,
		UpdatedAt: at,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"id": 1,
		"bookId": "b",
		"user": {"id": 2, "username": "user1"},
		"rating": 5,
		"comment": "c",
		"createdAt": "2024-01-02T03:04:05Z",
		"updatedAt": "2024-01-02T03:04:05Z",
		"isAutoGenerated": false
	}`, string(data))
}

func TestSeederDeterministic(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	a := NewSeeder(rand.New(rand.NewPCG(7, 7)), now).Generate("vol", DetailRange)
	b := NewSeeder(rand.New(rand.NewPCG(7, 7)), now).Generate("vol", DetailRange)
	assert.Equal(t, a, b)

	for i, r := range a {
		assert.Equal(t, SyntheticID("vol", i+1), r.ID)
		assert.True(t, r.CreatedAt.After(now().Add(-seedWindow)))
		assert.Contains(t, seedComments[r.Rating], r.Comment)
		assert.Equal(t, seedUsernames[r.User.ID-100], r.User.Username)
	}
}

func TestSeederClampsRange(t *testing.T) {
	s := NewSeeder(rand.New(rand.NewPCG(1, 1)), nil)

	assert.Len(t, s.Generate("x", SizeRange{Min: 0, Max: 0}), 1)
	assert.Len(t, s.Generate("x", SizeRange{Min: 4, Max: 2}), 4)
}

func TestSyntheticIDsAvoidTimestampRange(t *testing.T) {
	id := SyntheticID("anything", 1)
	assert.Greater(t, id, time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	assert.NotEqual(t, SyntheticID("a", 1), SyntheticID("b", 1))
}

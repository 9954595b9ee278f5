package reviews

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"
)

// syntheticIDBase keeps seeded ids clear of millisecond-timestamp ids.
const syntheticIDBase int64 = 10_000_000_000_000

const seedWindow = 365 * 24 * time.Hour

var seedUsernames = []string{
	"bookworm42",
	"pageturner",
	"novelnerd",
	"literarylion",
	"inkdrinker",
	"chapterchaser",
	"shelfiesam",
	"marginalia",
}

var seedComments = map[int][]string{
	1: {
		"Could not get into this one at all.",
		"I gave up halfway through. Not for me.",
	},
	2: {
		"A few good moments, but mostly a slog.",
		"The premise was promising, the execution less so.",
	},
	3: {
		"Decent read. Some parts dragged.",
		"Solid, if a little forgettable.",
	},
	4: {
		"Really enjoyed it, would recommend.",
		"Well written and hard to put down.",
	},
	5: {
		"An absolute favorite. I keep coming back to it.",
		"Brilliant from start to finish.",
	},
}

// Seeder generates placeholder reviews for books without stored reviews.
type Seeder struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSeeder creates a Seeder. A nil rng uses a randomly seeded PCG source and
// a nil now uses time.Now.
func NewSeeder(rng *rand.Rand, now func() time.Time) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &Seeder{rng: rng, now: now}
}

// Generate returns between size.Min and size.Max synthetic reviews for bookID.
// Ratings are uniform in [1,5] and timestamps uniform over the past year.
func (s *Seeder) Generate(bookID string, size SizeRange) []Review {
	s.mu.Lock()
	defer s.mu.Unlock()

	size = size.normalized()
	n := size.Min + s.rng.IntN(size.Max-size.Min+1)
	now := s.now().UTC()
	base := SyntheticID(bookID, 0)

	out := make([]Review, 0, n)
	for i := 0; i < n; i++ {
		userIdx := s.rng.IntN(len(seedUsernames))
		rating := MinRating + s.rng.IntN(MaxRating-MinRating+1)
		templates := seedComments[rating]
		comment := templates[s.rng.IntN(len(templates))]
		at := now.Add(-time.Duration(s.rng.Int64N(int64(seedWindow))))

		out = append(out, Review{
			ID:     base + int64(i+1),
			BookID: bookID,
			User: User{
				ID:       100 + userIdx,
				Username: seedUsernames[userIdx],
			},
			Rating:          rating,
			Comment:         comment,
			CreatedAt:       at,
			UpdatedAt:       at,
			IsAutoGenerated: true,
		})
	}
	return out
}

// SyntheticID derives the id of the seq-th seeded review of bookID.
func SyntheticID(bookID string, seq int) int64 {
	h := fnv.New32a()
	_, _ = fmt.Fprint(h, bookID)
	return syntheticIDBase + int64(h.Sum32())*1000 + int64(seq)
}

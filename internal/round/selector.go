package round

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
)

// ErrInvalidSelection indicates a malformed selection request (N <= 0 or an
// unknown mode). The selector raises nothing else; a thin corpus yields a
// short selection, not an error.
var ErrInvalidSelection = errors.New("invalid selection request")

// Snapshot is a point-in-time view of the corpus plus the round history the
// least-used modes need. The selector never touches storage or network.
type Snapshot struct {
	Songs []song.Record

	// GenreRounds and DecadeRounds count prior rounds per criterion value,
	// keyed by the lowercased genre or decade.
	GenreRounds  map[string]int
	DecadeRounds map[string]int
}

// Selection is the ordered outcome of a selection. Criterion echoes the
// request with Value filled in for the least-used modes.
type Selection struct {
	SongIDs   []string
	Criterion Criterion
}

// Selector picks songs from a corpus snapshot. All modes are randomized;
// the RNG is injected so callers supplying a seeded rand get reproducible
// output.
type Selector struct {
	rng *rand.Rand
}

// NewSelector creates a Selector draw from the given RNG.
func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// Select returns an ordered selection of at most n song IDs under the given
// criterion. External playlist rounds are resolved by the importer, not the
// selector.
func (s *Selector) Select(c Criterion, snap Snapshot, n int) (*Selection, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidSelection, n)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}

	switch c.Mode {
	case ModeRandom:
		return &Selection{SongIDs: s.selectRandom(snap, n), Criterion: c}, nil
	case ModeLeastUsedGenre:
		ids, value := s.selectLeastUsed(snap, n, false)
		c.Value = value
		return &Selection{SongIDs: ids, Criterion: c}, nil
	case ModeLeastUsedDecade:
		ids, value := s.selectLeastUsed(snap, n, true)
		c.Value = value
		return &Selection{SongIDs: ids, Criterion: c}, nil
	case ModeGenre, ModeDecade, ModeTag:
		return &Selection{SongIDs: s.selectFiltered(c, snap, n), Criterion: c}, nil
	case ModeExternalPlaylist:
		return nil, fmt.Errorf("%w: external playlist rounds are assembled by the importer", ErrInvalidSelection)
	default:
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidSelection, c.Mode)
	}
}

// selectRandom draws from the non-overused pool and repairs the draw until
// no artist repeats and no decade holds more than ceil(n/3) songs. When the
// candidate pool runs dry the remaining violators are dropped, so the
// result may be shorter than n.
func (s *Selector) selectRandom(snap Snapshot, n int) []string {
	pool := nonOverused(snap.Songs)
	picked, remaining := s.draw(pool, n)

	maxPerDecade := (n + 2) / 3

	for {
		idx := firstViolation(picked, maxPerDecade)
		if idx < 0 {
			break
		}
		if len(remaining) == 0 {
			// Best effort: drop the violator.
			picked = append(picked[:idx], picked[idx+1:]...)
			continue
		}
		j := s.rng.Intn(len(remaining))
		picked[idx] = remaining[j]
		remaining = append(remaining[:j], remaining[j+1:]...)
	}

	return ids(picked)
}

// selectLeastUsed finds the genre or decade bucket with the fewest prior
// rounds, picks uniformly among ties, and draws from non-overused songs in
// that bucket, topping up from the rest of the non-overused pool when the
// bucket is thin. No diversity constraints apply.
func (s *Selector) selectLeastUsed(snap Snapshot, n int, byDecade bool) ([]string, string) {
	usage := snap.GenreRounds
	bucketOf := func(r *song.Record) string { return r.Genre }
	if byDecade {
		usage = snap.DecadeRounds
		bucketOf = func(r *song.Record) string { return r.Decade() }
	}

	// Candidate buckets come from the corpus itself; unseen buckets have
	// zero usage.
	seen := make(map[string]string) // folded -> first casing
	for i := range snap.Songs {
		b := bucketOf(&snap.Songs[i])
		if b == "" {
			continue
		}
		key := strings.ToLower(b)
		if _, ok := seen[key]; !ok {
			seen[key] = b
		}
	}
	if len(seen) == 0 {
		picked, _ := s.draw(nonOverused(snap.Songs), n)
		return ids(picked), ""
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	minUsage := -1
	for _, k := range keys {
		if minUsage < 0 || usage[k] < minUsage {
			minUsage = usage[k]
		}
	}
	var argmin []string
	for _, k := range keys {
		if usage[k] == minUsage {
			argmin = append(argmin, k)
		}
	}
	chosen := argmin[s.rng.Intn(len(argmin))]

	pool := nonOverused(snap.Songs)
	var bucket, rest []*song.Record
	for _, r := range pool {
		if strings.ToLower(bucketOf(r)) == chosen {
			bucket = append(bucket, r)
		} else {
			rest = append(rest, r)
		}
	}

	picked, _ := s.draw(bucket, n)
	if len(picked) < n {
		fill, _ := s.draw(rest, n-len(picked))
		picked = append(picked, fill...)
	}

	return ids(picked), seen[chosen]
}

// selectFiltered filters the whole corpus by the criterion value and
// returns a uniform sample of n, or every match when fewer exist.
func (s *Selector) selectFiltered(c Criterion, snap Snapshot, n int) []string {
	var matches []*song.Record
	for i := range snap.Songs {
		r := &snap.Songs[i]
		switch c.Mode {
		case ModeGenre:
			if strings.EqualFold(r.Genre, c.Value) {
				matches = append(matches, r)
			}
		case ModeDecade:
			if r.Decade() == c.Value {
				matches = append(matches, r)
			}
		case ModeTag:
			for _, t := range r.Tags {
				if strings.EqualFold(t, c.Value) {
					matches = append(matches, r)
					break
				}
			}
		}
	}

	if len(matches) <= n {
		return ids(matches)
	}
	picked, _ := s.draw(matches, n)
	return ids(picked)
}

// draw takes up to n songs uniformly without replacement and returns them
// along with the unused remainder.
func (s *Selector) draw(pool []*song.Record, n int) (picked, remaining []*song.Record) {
	shuffled := make([]*song.Record, len(pool))
	copy(shuffled, pool)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n], shuffled[n:]
}

// nonOverused returns the songs whose used_count is at or below the corpus
// mean. When every song shares the same count, everything is eligible.
func nonOverused(songs []song.Record) []*song.Record {
	if len(songs) == 0 {
		return nil
	}
	total := 0
	for i := range songs {
		total += songs[i].UsedCount
	}
	mean := float64(total) / float64(len(songs))

	var pool []*song.Record
	for i := range songs {
		if float64(songs[i].UsedCount) <= mean {
			pool = append(pool, &songs[i])
		}
	}
	return pool
}

// firstViolation returns the index of the first song that repeats an
// earlier artist or pushes a decade past the quota, or -1 when the
// selection satisfies both constraints.
func firstViolation(picked []*song.Record, maxPerDecade int) int {
	artists := make(map[string]bool)
	decades := make(map[string]int)
	for i, r := range picked {
		artist := strings.ToLower(r.ArtistName)
		if artists[artist] {
			return i
		}
		artists[artist] = true

		if d := r.Decade(); d != "" {
			decades[d]++
			if decades[d] > maxPerDecade {
				return i
			}
		}
	}
	return -1
}

func ids(records []*song.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

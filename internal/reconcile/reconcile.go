// Package reconcile merges the per-source views of a recording into one
// canonical record under fixed majority and priority rules. It performs no
// I/O and keeps no state besides the genre translation table.
package reconcile

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

// ErrInsufficientData indicates the required title and artist fields could
// not be determined from the available source contributions.
var ErrInsufficientData = errors.New("insufficient data to reconcile title and artist")

// Input pairs a source's contribution with its name.
type Input struct {
	Source source.Name
	Record *source.PartialRecord
}

// Reconciler merges PartialRecords into canonical records.
type Reconciler struct {
	genres *Table
}

// New creates a Reconciler using the given genre translation table.
func New(genres *Table) *Reconciler {
	if genres == nil {
		genres = DefaultTable()
	}
	return &Reconciler{genres: genres}
}

// Reconcile merges the inputs into one canonical record for the given ISRC.
// Inputs are ordered by static source priority before any rule is applied,
// so permutations of the same input set produce identical output.
func (r *Reconciler) Reconcile(isrc string, inputs []Input) (*song.Record, error) {
	ordered := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if !in.Record.Empty() {
			ordered = append(ordered, in)
		}
	}
	if len(ordered) == 0 {
		return nil, ErrInsufficientData
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return source.Priority(ordered[i].Source) < source.Priority(ordered[j].Source)
	})

	contributed := make(map[source.Name]bool)
	rec := &song.Record{ISRC: isrc}

	title, titleBackers := voteString(collect(ordered, func(p *source.PartialRecord) string { return p.Title }))
	artist, artistBackers := voteString(collect(ordered, func(p *source.PartialRecord) string { return p.ArtistName }))
	if title == "" || artist == "" {
		return nil, ErrInsufficientData
	}
	rec.Title = title
	rec.ArtistName = artist
	mark(contributed, titleBackers)
	mark(contributed, artistBackers)

	if album, backer := firstNonEmpty(ordered, func(p *source.PartialRecord) string { return p.AlbumName }); album != "" {
		rec.AlbumName = album
		contributed[backer] = true
	}

	r.reconcileYear(ordered, rec, contributed)
	r.reconcileGenres(ordered, rec, contributed)
	r.reconcilePopularity(ordered, rec, contributed)
	r.reconcileURLs(ordered, rec, contributed)
	r.reconcileServiceIDs(ordered, rec, contributed)

	for _, in := range ordered {
		if contributed[in.Source] && !containsString(rec.Sources, string(in.Source)) {
			rec.Sources = append(rec.Sources, string(in.Source))
		}
	}

	return rec, nil
}

// reconcileYear picks the minimum castable 4-digit year, treated as the
// first-release year.
func (r *Reconciler) reconcileYear(ordered []Input, rec *song.Record, contributed map[source.Name]bool) {
	minYear := 0
	for _, in := range ordered {
		y, err := strconv.Atoi(in.Record.Year)
		if err != nil || len(in.Record.Year) != 4 {
			continue
		}
		if minYear == 0 || y < minYear {
			minYear = y
		}
	}
	if minYear == 0 {
		return
	}
	rec.Year = strconv.Itoa(minYear)
	for _, in := range ordered {
		if in.Record.Year == rec.Year {
			contributed[in.Source] = true
		}
	}
}

// genreEntry is one flattened, translated genre label with provenance.
type genreEntry struct {
	label string
	src   source.Name
}

// reconcileGenres computes the single most frequent genre (case-insensitive
// count, first-seen casing, priority tie-break) and the deduplicated list.
func (r *Reconciler) reconcileGenres(ordered []Input, rec *song.Record, contributed map[source.Name]bool) {
	var flat []genreEntry
	for _, in := range ordered {
		for _, label := range in.Record.Genres {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			flat = append(flat, genreEntry{label: r.genres.Translate(label), src: in.Source})
		}
	}
	if len(flat) == 0 {
		return
	}

	counts := make(map[string]int)
	firstIndex := make(map[string]int)
	firstCasing := make(map[string]string)
	for i, e := range flat {
		key := strings.ToLower(e.label)
		counts[key]++
		if _, seen := firstIndex[key]; !seen {
			firstIndex[key] = i
			firstCasing[key] = e.label
		}
	}

	bestKey := ""
	for key := range counts {
		if bestKey == "" {
			bestKey = key
			continue
		}
		if counts[key] > counts[bestKey] ||
			(counts[key] == counts[bestKey] && firstIndex[key] < firstIndex[bestKey]) {
			bestKey = key
		}
	}
	rec.Genre = firstCasing[bestKey]

	seen := make(map[string]bool)
	for _, e := range flat {
		key := strings.ToLower(e.label)
		if !seen[key] {
			seen[key] = true
			rec.Genres = append(rec.Genres, firstCasing[key])
		}
		contributed[e.src] = true
	}
}

// reconcilePopularity takes the value from the highest-priority source that
// supplied one.
func (r *Reconciler) reconcilePopularity(ordered []Input, rec *song.Record, contributed map[source.Name]bool) {
	for _, in := range ordered {
		if in.Record.Popularity != nil {
			v := *in.Record.Popularity
			rec.Popularity = &v
			contributed[in.Source] = true
			return
		}
	}
}

// reconcileURLs keeps the highest-priority URL per platform and derives the
// canonical preview and cover URLs from the platform fallback chains.
func (r *Reconciler) reconcileURLs(ordered []Input, rec *song.Record, contributed map[source.Name]bool) {
	preview := make(map[source.Platform]string)
	cover := make(map[source.Platform]string)
	for _, in := range ordered {
		for platform, u := range in.Record.PreviewURLs {
			if preview[platform] == "" && u != "" {
				preview[platform] = u
				contributed[in.Source] = true
			}
		}
		for platform, u := range in.Record.CoverURLs {
			if cover[platform] == "" && u != "" {
				cover[platform] = u
				contributed[in.Source] = true
			}
		}
	}

	rec.SpotifyPreviewURL = preview[source.PlatformSpotify]
	rec.ApplePreviewURL = preview[source.PlatformApple]
	rec.DeezerPreviewURL = preview[source.PlatformDeezer]
	rec.YouTubePreviewURL = preview[source.PlatformYouTube]
	rec.SpotifyCoverURL = cover[source.PlatformSpotify]
	rec.AppleCoverURL = cover[source.PlatformApple]
	rec.DeezerCoverURL = cover[source.PlatformDeezer]

	for _, u := range []string{rec.SpotifyPreviewURL, rec.ApplePreviewURL, rec.DeezerPreviewURL, rec.YouTubePreviewURL} {
		if u != "" {
			rec.PreviewURL = u
			break
		}
	}
	for _, u := range []string{rec.SpotifyCoverURL, rec.AppleCoverURL, rec.DeezerCoverURL} {
		if u != "" {
			rec.CoverURL = u
			break
		}
	}
}

// reconcileServiceIDs keeps the first ID encountered per platform.
func (r *Reconciler) reconcileServiceIDs(ordered []Input, rec *song.Record, contributed map[source.Name]bool) {
	ids := make(map[source.Platform]string)
	for _, in := range ordered {
		for platform, id := range in.Record.ServiceIDs {
			if ids[platform] == "" && id != "" {
				ids[platform] = id
				contributed[in.Source] = true
			}
		}
	}
	rec.SpotifyID = ids[source.PlatformSpotify]
	rec.DeezerID = ids[source.PlatformDeezer]
	rec.AppleID = ids[source.PlatformApple]
	rec.YouTubeID = ids[source.PlatformYouTube]
}

// Tentative runs the title and artist majority votes over the inputs
// without building a full record. The aggregator uses it to decide whether
// name-only sources can be queried.
func Tentative(inputs []Input) (title, artist string) {
	ordered := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if !in.Record.Empty() {
			ordered = append(ordered, in)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return source.Priority(ordered[i].Source) < source.Priority(ordered[j].Source)
	})
	title, _ = voteString(collect(ordered, func(p *source.PartialRecord) string { return p.Title }))
	artist, _ = voteString(collect(ordered, func(p *source.PartialRecord) string { return p.ArtistName }))
	return title, artist
}

// candidate is one non-empty string field value with provenance.
type candidate struct {
	value string
	src   source.Name
}

func collect(ordered []Input, get func(*source.PartialRecord) string) []candidate {
	var out []candidate
	for _, in := range ordered {
		if v := strings.TrimSpace(get(in.Record)); v != "" {
			out = append(out, candidate{value: v, src: in.Source})
		}
	}
	return out
}

// voteString runs a case-sensitive majority vote over the candidates, which
// must already be in priority order. Ties go to the earliest (highest
// priority) value. When all candidates agree case-insensitively, the
// highest-priority casing wins outright. The returned backers are the
// sources whose value matches the winner case-insensitively.
func voteString(cands []candidate) (string, []source.Name) {
	if len(cands) == 0 {
		return "", nil
	}

	allFold := true
	for _, c := range cands[1:] {
		if !strings.EqualFold(c.value, cands[0].value) {
			allFold = false
			break
		}
	}

	winner := ""
	if allFold {
		winner = cands[0].value
	} else {
		counts := make(map[string]int)
		firstIndex := make(map[string]int)
		for i, c := range cands {
			counts[c.value]++
			if _, seen := firstIndex[c.value]; !seen {
				firstIndex[c.value] = i
			}
		}
		for v := range counts {
			if winner == "" {
				winner = v
				continue
			}
			if counts[v] > counts[winner] ||
				(counts[v] == counts[winner] && firstIndex[v] < firstIndex[winner]) {
				winner = v
			}
		}
	}

	var backers []source.Name
	for _, c := range cands {
		if strings.EqualFold(c.value, winner) {
			backers = append(backers, c.src)
		}
	}
	return winner, backers
}

func firstNonEmpty(ordered []Input, get func(*source.PartialRecord) string) (string, source.Name) {
	for _, in := range ordered {
		if v := strings.TrimSpace(get(in.Record)); v != "" {
			return v, in.Source
		}
	}
	return "", ""
}

func mark(m map[source.Name]bool, names []source.Name) {
	for _, n := range names {
		m[n] = true
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

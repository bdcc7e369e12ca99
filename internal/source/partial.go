package source

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Platform identifies a streaming platform a URL or ID belongs to.
// ACRCloud reports several platforms in one response; the other adapters
// populate only their own platform key.
type Platform string

// Known platforms, in canonical URL fallback order.
const (
	PlatformSpotify Platform = "spotify"
	PlatformApple   Platform = "apple"
	PlatformDeezer  Platform = "deezer"
	PlatformYouTube Platform = "youtube"
)

// PartialRecord is one source's contribution to a recording. All fields are
// optional; absent fields stay zero. Adapters must not fabricate values.
type PartialRecord struct {
	Title      string
	ArtistName string
	AlbumName  string

	// Year is the 4-digit release year as reported by the source.
	Year string

	// Genres holds the source's genre labels, already flattened to strings.
	Genres []string

	// Popularity is a 0-100 score; nil when the source reports none.
	Popularity *int

	// PreviewURLs and CoverURLs are keyed by platform.
	PreviewURLs map[Platform]string
	CoverURLs   map[Platform]string

	// ServiceIDs holds platform-specific track identifiers.
	ServiceIDs map[Platform]string

	// Extras carries values that do not fit the schema (audio features etc.).
	Extras map[string]string
}

// Empty reports whether the record carries no usable field at all.
func (p *PartialRecord) Empty() bool {
	return p == nil ||
		(p.Title == "" && p.ArtistName == "" && p.AlbumName == "" &&
			p.Year == "" && len(p.Genres) == 0 && p.Popularity == nil &&
			len(p.PreviewURLs) == 0 && len(p.CoverURLs) == 0 &&
			len(p.ServiceIDs) == 0 && len(p.Extras) == 0)
}

// SetPreviewURL records a preview URL for a platform, dropping values that
// are not absolute http(s) URLs.
func (p *PartialRecord) SetPreviewURL(platform Platform, rawURL string) {
	if !ValidHTTPURL(rawURL) {
		return
	}
	if p.PreviewURLs == nil {
		p.PreviewURLs = make(map[Platform]string)
	}
	p.PreviewURLs[platform] = rawURL
}

// SetCoverURL records a cover art URL for a platform, dropping values that
// are not absolute http(s) URLs.
func (p *PartialRecord) SetCoverURL(platform Platform, rawURL string) {
	if !ValidHTTPURL(rawURL) {
		return
	}
	if p.CoverURLs == nil {
		p.CoverURLs = make(map[Platform]string)
	}
	p.CoverURLs[platform] = rawURL
}

// SetServiceID records a platform-specific track identifier.
func (p *PartialRecord) SetServiceID(platform Platform, id string) {
	if id == "" {
		return
	}
	if p.ServiceIDs == nil {
		p.ServiceIDs = make(map[Platform]string)
	}
	p.ServiceIDs[platform] = id
}

var yearPattern = regexp.MustCompile(`^[0-9]{4}$`)

// SetYear records a release year if it is a plausible 4-digit value.
// Date strings are truncated to their leading year component.
func (p *PartialRecord) SetYear(raw string) {
	raw = strings.TrimSpace(raw)
	if len(raw) > 4 {
		raw = raw[:4]
	}
	if yearPattern.MatchString(raw) {
		p.Year = raw
	}
}

// SetPopularity records a popularity score when it is within [0,100].
func (p *PartialRecord) SetPopularity(score int) {
	if score < 0 || score > 100 {
		return
	}
	p.Popularity = &score
}

// ValidHTTPURL reports whether raw is an absolute http(s) URL.
func ValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FlattenGenres normalizes an arbitrarily shaped genre value into a flat
// list of strings. Strings pass through, lists are flattened, and maps are
// traversed one level (string values kept, list values flattened); deeper
// nesting is ignored.
func FlattenGenres(v any) []string {
	var out []string
	switch g := v.(type) {
	case string:
		if s := strings.TrimSpace(g); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, s := range g {
			out = append(out, FlattenGenres(s)...)
		}
	case []any:
		for _, item := range g {
			switch it := item.(type) {
			case string:
				out = append(out, FlattenGenres(it)...)
			case map[string]any:
				// ACRCloud style: [{"name": "Rock"}, ...]
				out = append(out, flattenGenreMap(it)...)
			}
		}
	case map[string]any:
		out = append(out, flattenGenreMap(g)...)
	}
	return out
}

// flattenGenreMap extracts genre strings from one map level. Keys are
// visited in sorted order so the flattened list is deterministic.
func flattenGenreMap(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		v := m[k]
		switch it := v.(type) {
		case string:
			if s := strings.TrimSpace(it); s != "" {
				out = append(out, s)
			}
		case []string:
			for _, s := range it {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		case []any:
			for _, inner := range it {
				if s, ok := inner.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
					}
				}
			}
		}
	}
	return out
}

// Package song defines the canonical per-recording record held by the
// corpus, keyed by ISRC, and its backup wire format.
package song

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Record is the reconciled canonical view of one recording. The JSON tags
// define the backup wire format, which must round-trip.
type Record struct {
	ID         string `json:"id,omitempty"`
	ISRC       string `json:"isrc"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name"`
	AlbumName  string `json:"album_name,omitempty"`

	// Year is the earliest 4-digit release year reported by any source.
	Year string `json:"year,omitempty"`

	// Genre is the single most frequent genre label across sources;
	// Genres preserves every label, deduplicated case-insensitively.
	Genre  string   `json:"genre,omitempty"`
	Genres []string `json:"genres,omitempty"`

	Popularity *int `json:"popularity,omitempty"`

	// PreviewURL and CoverURL are the canonical picks from the per-platform
	// URLs below (spotify > apple > deezer > youtube, and spotify > apple >
	// deezer respectively).
	PreviewURL string `json:"preview_url,omitempty"`
	CoverURL   string `json:"cover_url,omitempty"`

	SpotifyID string `json:"spotify_id,omitempty"`
	DeezerID  string `json:"deezer_id,omitempty"`
	AppleID   string `json:"apple_id,omitempty"`
	YouTubeID string `json:"youtube_id,omitempty"`

	SpotifyPreviewURL string `json:"spotify_preview_url,omitempty"`
	ApplePreviewURL   string `json:"apple_preview_url,omitempty"`
	DeezerPreviewURL  string `json:"deezer_preview_url,omitempty"`
	YouTubePreviewURL string `json:"youtube_preview_url,omitempty"`

	SpotifyCoverURL string `json:"spotify_cover_url,omitempty"`
	AppleCoverURL   string `json:"apple_cover_url,omitempty"`
	DeezerCoverURL  string `json:"deezer_cover_url,omitempty"`

	// Sources lists the names of the sources that contributed at least one
	// field, in priority order. Never empty for a reconciled record.
	Sources []string `json:"sources"`

	ImportedAt time.Time `json:"import_timestamp,omitempty"`

	// Usage bookkeeping, maintained by the corpus store. Not part of the
	// backup wire format.
	UsedCount int        `json:"-"`
	LastUsed  *time.Time `json:"-"`
	Tags      []string   `json:"-"`
}

// Decade returns the decade of the release year ("1980" for 1983), or the
// empty string when the year is unknown.
func (r *Record) Decade() string {
	y, err := strconv.Atoi(r.Year)
	if err != nil {
		return ""
	}
	return strconv.Itoa(y / 10 * 10)
}

var isrcPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[0-9]{7}$`)

// NormalizeISRC uppercases an ISRC and strips the separators some catalogs
// embed ("AU-AP0-79-00028" form).
func NormalizeISRC(isrc string) string {
	isrc = strings.ToUpper(strings.TrimSpace(isrc))
	return strings.ReplaceAll(isrc, "-", "")
}

// ValidISRC reports whether isrc is a well-formed normalized ISRC:
// a 2-letter country code, a 3-character registrant code, a 2-digit year
// and a 5-digit designation code.
func ValidISRC(isrc string) bool {
	return isrcPattern.MatchString(isrc)
}

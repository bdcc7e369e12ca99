// Package source defines the contract between the metadata aggregator and
// the catalog service adapters: the PartialRecord each adapter produces,
// the typed errors adapters report, and the static source priority used
// for reconciliation tie-breaking.
package source

import (
	"context"
	"fmt"
	"time"
)

// Name uniquely identifies a catalog source.
type Name string

// Known source names.
const (
	NameACRCloud    Name = "acrcloud"
	NameMusicBrainz Name = "musicbrainz"
	NameSpotify     Name = "spotify"
	NameDeezer      Name = "deezer"
	NameLastFM      Name = "lastfm"
	NameOracle      Name = "oracle"
)

// AllNames returns all known source names in priority order (highest first).
func AllNames() []Name {
	return []Name{
		NameACRCloud,
		NameMusicBrainz,
		NameSpotify,
		NameDeezer,
		NameLastFM,
		NameOracle,
	}
}

// Priority returns the static priority rank for a source; lower is better.
// Unknown sources rank last.
func Priority(n Name) int {
	switch n {
	case NameACRCloud:
		return 1
	case NameMusicBrainz:
		return 2
	case NameSpotify:
		return 3
	case NameDeezer:
		return 4
	case NameLastFM:
		return 5
	case NameOracle:
		return 6
	default:
		return 100
	}
}

// DisplayName returns a human-readable name for the source.
func (n Name) DisplayName() string {
	switch n {
	case NameACRCloud:
		return "ACRCloud"
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameSpotify:
		return "Spotify"
	case NameDeezer:
		return "Deezer"
	case NameLastFM:
		return "Last.fm"
	case NameOracle:
		return "LLM Oracle"
	default:
		return string(n)
	}
}

// SearchKind classifies what a catalog search should return.
type SearchKind string

// Known search kinds.
const (
	KindTrack    SearchKind = "track"
	KindAlbum    SearchKind = "album"
	KindPlaylist SearchKind = "playlist"
)

// Ref is a search hit pointing at a catalog object.
type Ref struct {
	Source Name       `json:"source"`
	Kind   SearchKind `json:"kind"`
	ID     string     `json:"id"`
	Title  string     `json:"title,omitempty"`
	Artist string     `json:"artist,omitempty"`
}

// TrackRef identifies one track inside an album or playlist listing.
// ISRC may be empty when the catalog does not expose one for the track.
type TrackRef struct {
	ISRC      string `json:"isrc,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Artist    string `json:"artist,omitempty"`
}

// Adapter is the interface all catalog source adapters must implement.
// Adapters report only values the service actually returned; they never
// interpolate or guess. ISRC syntax is validated by the caller. Every
// adapter additionally implements ISRCLookup, NameLookup, or both.
type Adapter interface {
	// Name returns the unique source identifier.
	Name() Name

	// Priority returns the static priority rank; lower wins ties.
	Priority() int

	// RequiresAuth returns true if this source needs credentials to function.
	RequiresAuth() bool
}

// ISRCLookup is implemented by adapters that can query by ISRC.
type ISRCLookup interface {
	LookupByISRC(ctx context.Context, isrc string) (*PartialRecord, error)
}

// NameLookup is implemented by adapters that can resolve a recording from
// an artist and title pair. It is the only lookup path for the Last.fm and
// oracle adapters.
type NameLookup interface {
	LookupByName(ctx context.Context, artist, title string) (*PartialRecord, error)
}

// Searcher is the optional interface for sources with a catalog search.
type Searcher interface {
	Search(ctx context.Context, query string, kind SearchKind) ([]Ref, error)
}

// PlaylistSource is the optional interface for sources that can list the
// tracks of a playlist or album, used by the bulk import paths.
type PlaylistSource interface {
	PlaylistTracks(ctx context.Context, playlistID string) ([]TrackRef, error)
	AlbumTracks(ctx context.Context, albumID string) ([]TrackRef, error)
}

// TrackResolver is the optional interface for sources that can resolve a
// single catalog track by its service ID. The import paths use it to
// recover ISRCs for listings that do not carry them.
type TrackResolver interface {
	ResolveTrack(ctx context.Context, serviceID string) (*TrackRef, error)
}

// ErrNotFound indicates the source has no data for the requested recording.
type ErrNotFound struct {
	Source Name
	Key    string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("source %s: %s not found", e.Source, e.Key)
}

// ErrUnavailable indicates a transient failure (rate-limited, timeout,
// server error). Callers may retry.
type ErrUnavailable struct {
	Source     Name
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// ErrAuthRequired indicates the source needs credentials that are missing
// or rejected. The failure is permanent for the current lookup.
type ErrAuthRequired struct {
	Source Name
	Cause  error
}

func (e *ErrAuthRequired) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source %s: authentication failed: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("source %s: credentials not configured", e.Source)
}

func (e *ErrAuthRequired) Unwrap() error { return e.Cause }

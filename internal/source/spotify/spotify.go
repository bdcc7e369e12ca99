// Package spotify implements the source adapter for the Spotify Web API
// using the client credentials flow. Spotify is the richest source: it
// resolves tracks by ISRC, searches the catalog, and lists playlist and
// album tracks for bulk import.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

const (
	defaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultAPIURL   = "https://api.spotify.com/v1"
)

// Adapter implements source.Adapter, source.ISRCLookup, source.Searcher,
// and source.PlaylistSource for Spotify.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	apiURL  string

	configured bool

	// Track objects carry no genres; they live on the artist. Cache per
	// artist ID to avoid re-fetching across tracks of one import batch.
	cacheMu    sync.Mutex
	genreCache map[string][]string
}

// New creates a Spotify adapter with the production endpoints.
func New(clientID, clientSecret string, limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithEndpoints(clientID, clientSecret, limiter, logger, defaultTokenURL, defaultAPIURL)
}

// NewWithEndpoints creates a Spotify adapter with custom token and API
// endpoints (for testing).
func NewWithEndpoints(clientID, clientSecret string, limiter *source.RateLimiterMap, logger *slog.Logger, tokenURL, apiURL string) *Adapter {
	a := &Adapter{
		limiter:    limiter,
		logger:     logger.With(slog.String("source", "spotify")),
		apiURL:     strings.TrimRight(apiURL, "/"),
		genreCache: make(map[string][]string),
	}
	if clientID != "" && clientSecret != "" {
		cfg := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		}
		a.client = cfg.Client(context.Background())
		a.client.Timeout = 15 * time.Second
		a.configured = true
	}
	return a
}

// Name returns the source identifier.
func (a *Adapter) Name() source.Name { return source.NameSpotify }

// Priority returns the static priority rank.
func (a *Adapter) Priority() int { return source.Priority(source.NameSpotify) }

// RequiresAuth returns true; Spotify needs client credentials.
func (a *Adapter) RequiresAuth() bool { return true }

// LookupByISRC searches the catalog for a track carrying the given ISRC.
func (a *Adapter) LookupByISRC(ctx context.Context, isrc string) (*source.PartialRecord, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("isrc:%s", isrc))
	query.Set("type", "track")
	query.Set("limit", "1")

	var result searchResponse
	if err := a.getJSON(ctx, fmt.Sprintf("%s/search?%s", a.apiURL, query.Encode()), &result); err != nil {
		return nil, err
	}
	if len(result.Tracks.Items) == 0 {
		return nil, &source.ErrNotFound{Source: source.NameSpotify, Key: isrc}
	}

	track := &result.Tracks.Items[0]
	p := a.partialFromTrack(ctx, track)
	return p, nil
}

// Search queries the Spotify catalog for tracks, albums, or playlists.
func (a *Adapter) Search(ctx context.Context, q string, kind source.SearchKind) ([]source.Ref, error) {
	var spotifyType string
	switch kind {
	case source.KindTrack:
		spotifyType = "track"
	case source.KindAlbum:
		spotifyType = "album"
	case source.KindPlaylist:
		spotifyType = "playlist"
	default:
		return nil, fmt.Errorf("unsupported search kind %q", kind)
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("type", spotifyType)
	query.Set("limit", "20")

	var result searchResponse
	if err := a.getJSON(ctx, fmt.Sprintf("%s/search?%s", a.apiURL, query.Encode()), &result); err != nil {
		return nil, err
	}

	var refs []source.Ref
	switch kind {
	case source.KindTrack:
		for _, t := range result.Tracks.Items {
			refs = append(refs, source.Ref{
				Source: source.NameSpotify,
				Kind:   kind,
				ID:     t.ID,
				Title:  t.Name,
				Artist: primaryArtist(t.Artists),
			})
		}
	case source.KindAlbum:
		for _, al := range result.Albums.Items {
			refs = append(refs, source.Ref{
				Source: source.NameSpotify,
				Kind:   kind,
				ID:     al.ID,
				Title:  al.Name,
				Artist: primaryArtist(al.Artists),
			})
		}
	case source.KindPlaylist:
		for _, pl := range result.Playlists.Items {
			refs = append(refs, source.Ref{
				Source: source.NameSpotify,
				Kind:   kind,
				ID:     pl.ID,
				Title:  pl.Name,
				Artist: pl.Owner.DisplayName,
			})
		}
	}
	return refs, nil
}

// ResolveTrack fetches a single full track object by Spotify ID,
// recovering its ISRC.
func (a *Adapter) ResolveTrack(ctx context.Context, serviceID string) (*source.TrackRef, error) {
	var track trackObject
	if err := a.getJSON(ctx, fmt.Sprintf("%s/tracks/%s", a.apiURL, url.PathEscape(serviceID)), &track); err != nil {
		return nil, err
	}
	if track.ID == "" {
		return nil, &source.ErrNotFound{Source: source.NameSpotify, Key: serviceID}
	}
	return &source.TrackRef{
		ISRC:      track.ExternalIDs.ISRC,
		ServiceID: track.ID,
		Title:     track.Name,
		Artist:    primaryArtist(track.Artists),
	}, nil
}

// PlaylistTracks lists a playlist's tracks. Spotify's full track objects
// carry ISRCs, so the refs resolve by ISRC directly.
func (a *Adapter) PlaylistTracks(ctx context.Context, playlistID string) ([]source.TrackRef, error) {
	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=100", a.apiURL, url.PathEscape(playlistID))

	var refs []source.TrackRef
	for next != "" {
		var page playlistTracksResponse
		if err := a.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Track == nil {
				// Local files and removed tracks come back null.
				continue
			}
			refs = append(refs, source.TrackRef{
				ISRC:      item.Track.ExternalIDs.ISRC,
				ServiceID: item.Track.ID,
				Title:     item.Track.Name,
				Artist:    primaryArtist(item.Track.Artists),
			})
		}
		next = a.rebaseNext(page.Next)
	}
	return refs, nil
}

// AlbumTracks lists an album's tracks. The simplified track objects carry
// no ISRC, so the refs resolve by service ID.
func (a *Adapter) AlbumTracks(ctx context.Context, albumID string) ([]source.TrackRef, error) {
	next := fmt.Sprintf("%s/albums/%s/tracks?limit=50", a.apiURL, url.PathEscape(albumID))

	var refs []source.TrackRef
	for next != "" {
		var page albumTracksResponse
		if err := a.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			refs = append(refs, source.TrackRef{
				ServiceID: item.ID,
				Title:     item.Name,
				Artist:    primaryArtist(item.Artists),
			})
		}
		next = a.rebaseNext(page.Next)
	}
	return refs, nil
}

// rebaseNext rewrites a pagination URL onto the configured API base so
// tests against a local server can follow pages.
func (a *Adapter) rebaseNext(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	base, err := url.Parse(a.apiURL)
	if err != nil {
		return ""
	}
	u.Scheme = base.Scheme
	u.Host = base.Host
	return u.String()
}

func (a *Adapter) partialFromTrack(ctx context.Context, t *trackObject) *source.PartialRecord {
	p := &source.PartialRecord{
		Title:      t.Name,
		ArtistName: primaryArtist(t.Artists),
		AlbumName:  t.Album.Name,
	}
	p.SetYear(t.Album.ReleaseDate)
	p.SetPopularity(t.Popularity)
	p.SetServiceID(source.PlatformSpotify, t.ID)
	p.SetPreviewURL(source.PlatformSpotify, t.PreviewURL)
	p.SetCoverURL(source.PlatformSpotify, largestImage(t.Album.Images))

	if len(t.Artists) > 0 && t.Artists[0].ID != "" {
		if genres, err := a.artistGenres(ctx, t.Artists[0].ID); err == nil {
			p.Genres = genres
		}
	}
	return p
}

// artistGenres fetches an artist's genres, memoized per adapter.
func (a *Adapter) artistGenres(ctx context.Context, artistID string) ([]string, error) {
	a.cacheMu.Lock()
	if genres, ok := a.genreCache[artistID]; ok {
		a.cacheMu.Unlock()
		return genres, nil
	}
	a.cacheMu.Unlock()

	var artist artistObject
	if err := a.getJSON(ctx, fmt.Sprintf("%s/artists/%s", a.apiURL, url.PathEscape(artistID)), &artist); err != nil {
		return nil, err
	}

	a.cacheMu.Lock()
	a.genreCache[artistID] = artist.Genres
	a.cacheMu.Unlock()
	return artist.Genres, nil
}

func (a *Adapter) getJSON(ctx context.Context, reqURL string, out any) error {
	if !a.configured {
		return &source.ErrAuthRequired{Source: source.NameSpotify}
	}
	if err := a.limiter.Wait(ctx, source.NameSpotify); err != nil {
		return &source.ErrUnavailable{
			Source: source.NameSpotify,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		// The oauth2 transport surfaces token fetch failures here.
		if strings.Contains(err.Error(), "oauth2") {
			return &source.ErrAuthRequired{Source: source.NameSpotify, Cause: err}
		}
		return &source.ErrUnavailable{Source: source.NameSpotify, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		// continue
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &source.ErrAuthRequired{
			Source: source.NameSpotify,
			Cause:  fmt.Errorf("status %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusNotFound:
		return &source.ErrNotFound{Source: source.NameSpotify, Key: reqURL}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &source.ErrUnavailable{
			Source:     source.NameSpotify,
			Cause:      fmt.Errorf("rate limited by server"),
			RetryAfter: retryAfter(resp),
		}
	default:
		return &source.ErrUnavailable{
			Source: source.NameSpotify,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return &source.ErrUnavailable{Source: source.NameSpotify, Cause: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if secs := resp.Header.Get("Retry-After"); secs != "" {
		if d, err := time.ParseDuration(secs + "s"); err == nil {
			return d
		}
	}
	return 2 * time.Second
}

func primaryArtist(artists []artistObject) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

// largestImage picks the widest cover image.
func largestImage(images []imageObject) string {
	best := ""
	bestWidth := -1
	for _, img := range images {
		if img.Width > bestWidth {
			best = img.URL
			bestWidth = img.Width
		}
	}
	return best
}

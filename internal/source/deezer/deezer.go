// Package deezer implements the source adapter for Deezer's public API.
// No authentication is required. Deezer resolves tracks directly by ISRC
// and exposes playlist and album listings for the bulk import paths.
package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

const defaultBaseURL = "https://api.deezer.com"

// Adapter implements source.Adapter, source.ISRCLookup, and
// source.PlaylistSource for Deezer.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a Deezer adapter with the default base URL.
func New(limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Deezer adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "deezer")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() source.Name { return source.NameDeezer }

// Priority returns the static priority rank.
func (a *Adapter) Priority() int { return source.Priority(source.NameDeezer) }

// RequiresAuth returns false since Deezer's public API needs no key.
func (a *Adapter) RequiresAuth() bool { return false }

// LookupByISRC fetches Deezer's view of a recording.
func (a *Adapter) LookupByISRC(ctx context.Context, isrc string) (*source.PartialRecord, error) {
	reqURL := fmt.Sprintf("%s/track/isrc:%s", a.baseURL, url.PathEscape(isrc))
	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var track trackResult
	if err := json.Unmarshal(body, &track); err != nil {
		return nil, fmt.Errorf("parsing track response: %w", err)
	}
	if track.Error != nil || track.ID == 0 {
		return nil, &source.ErrNotFound{Source: source.NameDeezer, Key: isrc}
	}

	return partialFromTrack(&track), nil
}

// ResolveTrack fetches a single track by Deezer ID, recovering its ISRC.
func (a *Adapter) ResolveTrack(ctx context.Context, serviceID string) (*source.TrackRef, error) {
	body, err := a.doRequest(ctx, fmt.Sprintf("%s/track/%s", a.baseURL, url.PathEscape(serviceID)))
	if err != nil {
		return nil, err
	}

	var track trackResult
	if err := json.Unmarshal(body, &track); err != nil {
		return nil, fmt.Errorf("parsing track response: %w", err)
	}
	if track.Error != nil || track.ID == 0 {
		return nil, &source.ErrNotFound{Source: source.NameDeezer, Key: serviceID}
	}

	return &source.TrackRef{
		ISRC:      track.ISRC,
		ServiceID: strconv.Itoa(track.ID),
		Title:     track.Title,
		Artist:    track.Artist.Name,
	}, nil
}

// PlaylistTracks lists the tracks of a public playlist. Deezer's playlist
// listing does not carry ISRCs, so the refs identify tracks by service ID.
func (a *Adapter) PlaylistTracks(ctx context.Context, playlistID string) ([]source.TrackRef, error) {
	return a.listTracks(ctx, fmt.Sprintf("%s/playlist/%s", a.baseURL, url.PathEscape(playlistID)), playlistID)
}

// AlbumTracks lists the tracks of an album by service ID.
func (a *Adapter) AlbumTracks(ctx context.Context, albumID string) ([]source.TrackRef, error) {
	return a.listTracks(ctx, fmt.Sprintf("%s/album/%s", a.baseURL, url.PathEscape(albumID)), albumID)
}

func (a *Adapter) listTracks(ctx context.Context, reqURL, key string) ([]source.TrackRef, error) {
	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var listing listingResult
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("parsing listing response: %w", err)
	}
	if listing.Error != nil || listing.ID == 0 {
		return nil, &source.ErrNotFound{Source: source.NameDeezer, Key: key}
	}

	refs := make([]source.TrackRef, 0, len(listing.Tracks.Data))
	for _, t := range listing.Tracks.Data {
		refs = append(refs, source.TrackRef{
			ISRC:      t.ISRC,
			ServiceID: strconv.Itoa(t.ID),
			Title:     t.Title,
			Artist:    t.Artist.Name,
		})
	}

	a.logger.Debug("listing resolved",
		slog.String("key", key),
		slog.Int("tracks", len(refs)))

	return refs, nil
}

// doRequest executes a rate-limited GET and returns the response body.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, source.NameDeezer); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameDeezer,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameDeezer, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		// continue
	case resp.StatusCode == http.StatusNotFound:
		return nil, &source.ErrNotFound{Source: source.NameDeezer, Key: reqURL}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &source.ErrUnavailable{
			Source:     source.NameDeezer,
			Cause:      fmt.Errorf("rate limited by server"),
			RetryAfter: 2 * time.Second,
		}
	default:
		return nil, &source.ErrUnavailable{
			Source: source.NameDeezer,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
}

// partialFromTrack maps a Deezer track onto the common PartialRecord.
// Deezer's rank score is not 0-100, so it goes to extras rather than
// popularity.
func partialFromTrack(t *trackResult) *source.PartialRecord {
	p := &source.PartialRecord{
		Title:      t.Title,
		ArtistName: t.Artist.Name,
		AlbumName:  t.Album.Title,
	}
	p.SetYear(t.ReleaseDate)
	p.SetServiceID(source.PlatformDeezer, strconv.Itoa(t.ID))
	p.SetPreviewURL(source.PlatformDeezer, t.Preview)
	if t.Album.CoverXL != "" {
		p.SetCoverURL(source.PlatformDeezer, t.Album.CoverXL)
	} else {
		p.SetCoverURL(source.PlatformDeezer, t.Album.CoverBig)
	}
	return p
}

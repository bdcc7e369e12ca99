// Package acrcloud implements the source adapter for ACRCloud's external
// metadata API. ACRCloud is the highest-priority source: it aggregates
// catalog links across platforms, so one lookup yields service IDs,
// preview URLs, and cover art for several platforms at once.
package acrcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

const defaultBaseURL = "https://eu-api-v2.acrcloud.com"

// Adapter implements source.Adapter and source.ISRCLookup for ACRCloud.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	token   string
}

// New creates an ACRCloud adapter with the default base URL.
func New(token string, limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(token, limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates an ACRCloud adapter with a custom base URL
// (for testing).
func NewWithBaseURL(token string, limiter *source.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "acrcloud")),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() source.Name { return source.NameACRCloud }

// Priority returns the static priority rank.
func (a *Adapter) Priority() int { return source.Priority(source.NameACRCloud) }

// RequiresAuth returns true; ACRCloud needs a bearer token.
func (a *Adapter) RequiresAuth() bool { return true }

// LookupByISRC fetches ACRCloud's aggregated view of a recording.
func (a *Adapter) LookupByISRC(ctx context.Context, isrc string) (*source.PartialRecord, error) {
	if a.token == "" {
		return nil, &source.ErrAuthRequired{Source: source.NameACRCloud}
	}
	if err := a.limiter.Wait(ctx, source.NameACRCloud); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameACRCloud,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	query := url.Values{}
	query.Set("query", isrc)
	query.Set("format", "json")
	reqURL := fmt.Sprintf("%s/api/external-metadata/tracks?%s", a.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameACRCloud, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		// continue
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &source.ErrAuthRequired{
			Source: source.NameACRCloud,
			Cause:  fmt.Errorf("status %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &source.ErrNotFound{Source: source.NameACRCloud, Key: isrc}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &source.ErrUnavailable{
			Source:     source.NameACRCloud,
			Cause:      fmt.Errorf("rate limited by server"),
			RetryAfter: 2 * time.Second,
		}
	default:
		return nil, &source.ErrUnavailable{
			Source: source.NameACRCloud,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameACRCloud, Cause: err}
	}

	var result tracksResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing tracks response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, &source.ErrNotFound{Source: source.NameACRCloud, Key: isrc}
	}

	return partialFromTrack(&result.Data[0]), nil
}

func partialFromTrack(t *trackResult) *source.PartialRecord {
	p := &source.PartialRecord{
		Title:     t.Name,
		AlbumName: t.Album.Name,
		Genres:    source.FlattenGenres(t.Genres),
	}
	if len(t.Artists) > 0 {
		p.ArtistName = t.Artists[0].Name
	}
	p.SetYear(t.ReleaseDate)

	em := t.ExternalMetadata
	if b := em.Spotify; b != nil {
		p.SetServiceID(source.PlatformSpotify, b.Track.ID)
		p.SetPreviewURL(source.PlatformSpotify, b.Track.Preview)
		p.SetCoverURL(source.PlatformSpotify, b.Album.Cover)
	}
	if b := em.Deezer; b != nil {
		p.SetServiceID(source.PlatformDeezer, b.Track.ID)
		p.SetPreviewURL(source.PlatformDeezer, b.Track.Preview)
		p.SetCoverURL(source.PlatformDeezer, b.Album.Cover)
	}
	if b := em.AppleMusic; b != nil {
		p.SetServiceID(source.PlatformApple, b.Track.ID)
		p.SetPreviewURL(source.PlatformApple, b.Track.Preview)
		p.SetCoverURL(source.PlatformApple, b.Album.Cover)
	}
	if y := em.YouTube; y != nil && y.VID != "" {
		p.SetServiceID(source.PlatformYouTube, y.VID)
		p.SetPreviewURL(source.PlatformYouTube, "https://www.youtube.com/watch?v="+y.VID)
	}
	return p
}

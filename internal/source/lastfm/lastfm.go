// Package lastfm implements the source adapter for the Last.fm API.
// Last.fm cannot resolve ISRCs; it looks recordings up by artist and
// title, contributing community genre tags and album names.
package lastfm

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

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0"

// maxTags caps how many community tags become genre candidates; tags are
// ordered by weight, and the long tail is noise ("seen live", years, moods).
const maxTags = 5

// Adapter implements source.Adapter and source.NameLookup for Last.fm.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	apiKey  string
}

// New creates a Last.fm adapter with the default base URL.
func New(apiKey string, limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(apiKey, limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Last.fm adapter with a custom base URL
// (for testing).
func NewWithBaseURL(apiKey string, limiter *source.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "lastfm")),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() source.Name { return source.NameLastFM }

// Priority returns the static priority rank.
func (a *Adapter) Priority() int { return source.Priority(source.NameLastFM) }

// RequiresAuth returns true; Last.fm needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// LookupByName fetches track info by artist and title.
func (a *Adapter) LookupByName(ctx context.Context, artist, title string) (*source.PartialRecord, error) {
	if a.apiKey == "" {
		return nil, &source.ErrAuthRequired{Source: source.NameLastFM}
	}
	if err := a.limiter.Wait(ctx, source.NameLastFM); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameLastFM,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	query := url.Values{}
	query.Set("method", "track.getInfo")
	query.Set("artist", artist)
	query.Set("track", title)
	query.Set("api_key", a.apiKey)
	query.Set("format", "json")
	query.Set("autocorrect", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/?%s", a.baseURL, query.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameLastFM, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest &&
		resp.StatusCode != http.StatusForbidden {
		return nil, &source.ErrUnavailable{
			Source: source.NameLastFM,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameLastFM, Cause: err}
	}

	var result trackInfoResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing track info: %w", err)
	}

	if result.Error != 0 {
		return nil, a.classifyError(&result, artist, title)
	}
	if result.Track == nil {
		return nil, &source.ErrNotFound{Source: source.NameLastFM, Key: artist + " - " + title}
	}

	return partialFromTrack(result.Track), nil
}

// classifyError maps Last.fm's in-band error codes onto our typed errors.
func (a *Adapter) classifyError(r *trackInfoResponse, artist, title string) error {
	switch r.Error {
	case codeInvalidKey:
		return &source.ErrAuthRequired{
			Source: source.NameLastFM,
			Cause:  fmt.Errorf("%s", r.Message),
		}
	case codeOffline, codeRateLimited:
		return &source.ErrUnavailable{
			Source:     source.NameLastFM,
			Cause:      fmt.Errorf("%s (code %d)", r.Message, r.Error),
			RetryAfter: 5 * time.Second,
		}
	default:
		// Code 6 covers both bad parameters and unknown tracks.
		return &source.ErrNotFound{Source: source.NameLastFM, Key: artist + " - " + title}
	}
}

func partialFromTrack(t *trackInfo) *source.PartialRecord {
	p := &source.PartialRecord{
		Title:      t.Name,
		ArtistName: t.Artist.Name,
	}
	if t.Album != nil {
		p.AlbumName = t.Album.Title
	}
	for i, tag := range t.TopTags.Tag {
		if i >= maxTags {
			break
		}
		if name := strings.TrimSpace(tag.Name); name != "" {
			p.Genres = append(p.Genres, name)
		}
	}
	return p
}

// Package musicbrainz implements the source adapter for the MusicBrainz
// web service. MusicBrainz requires no key but asks for a descriptive
// User-Agent and at most one request per second.
package musicbrainz

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
	"github.com/quizzicalbeats/quizzicalbeats/internal/version"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// Adapter implements source.Adapter and source.ISRCLookup for MusicBrainz.
type Adapter struct {
	client    *http.Client
	limiter   *source.RateLimiterMap
	logger    *slog.Logger
	baseURL   string
	userAgent string
}

// New creates a MusicBrainz adapter with the default base URL.
func New(limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL
// (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   limiter,
		logger:    logger.With(slog.String("source", "musicbrainz")),
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: fmt.Sprintf("QuizzicalBeats/%s (https://github.com/quizzicalbeats/quizzicalbeats)", version.Version),
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() source.Name { return source.NameMusicBrainz }

// Priority returns the static priority rank.
func (a *Adapter) Priority() int { return source.Priority(source.NameMusicBrainz) }

// RequiresAuth returns false; MusicBrainz is open.
func (a *Adapter) RequiresAuth() bool { return false }

// LookupByISRC searches recordings carrying the given ISRC and maps the
// best-scored hit onto a PartialRecord.
func (a *Adapter) LookupByISRC(ctx context.Context, isrc string) (*source.PartialRecord, error) {
	query := url.Values{}
	query.Set("query", fmt.Sprintf("isrc:%s", isrc))
	query.Set("fmt", "json")
	reqURL := fmt.Sprintf("%s/recording?%s", a.baseURL, query.Encode())

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var result searchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing recording search: %w", err)
	}
	if len(result.Recordings) == 0 {
		return nil, &source.ErrNotFound{Source: source.NameMusicBrainz, Key: isrc}
	}

	best := bestRecording(result.Recordings)
	return partialFromRecording(best), nil
}

// bestRecording picks the highest-scored recording; equal scores keep the
// server's ordering.
func bestRecording(recs []recording) *recording {
	best := &recs[0]
	for i := 1; i < len(recs); i++ {
		if recs[i].Score > best.Score {
			best = &recs[i]
		}
	}
	return best
}

func partialFromRecording(rec *recording) *source.PartialRecord {
	p := &source.PartialRecord{
		Title:      rec.Title,
		ArtistName: creditedArtist(rec.ArtistCredit),
	}

	if len(rec.Releases) > 0 {
		p.AlbumName = rec.Releases[0].Title
	}

	// first-release-date is the earliest known date across all releases,
	// which matches how release years are reconciled downstream.
	p.SetYear(rec.FirstReleaseDate)
	if p.Year == "" && len(rec.Releases) > 0 {
		p.SetYear(rec.Releases[0].Date)
	}

	for _, t := range rec.Tags {
		if t.Count > 0 {
			p.Genres = append(p.Genres, t.Name)
		}
	}

	return p
}

// creditedArtist joins the artist credit phrase into a single display name,
// e.g. "Daft Punk feat. Pharrell Williams".
func creditedArtist(credits []artistCredit) string {
	var b strings.Builder
	for _, c := range credits {
		b.WriteString(c.Name)
		b.WriteString(c.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, source.NameMusicBrainz); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameMusicBrainz, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		// continue
	case resp.StatusCode == http.StatusNotFound:
		return nil, &source.ErrNotFound{Source: source.NameMusicBrainz, Key: reqURL}
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &source.ErrUnavailable{
			Source:     source.NameMusicBrainz,
			Cause:      fmt.Errorf("throttled with status %d", resp.StatusCode),
			RetryAfter: time.Second,
		}
	default:
		return nil, &source.ErrUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
}

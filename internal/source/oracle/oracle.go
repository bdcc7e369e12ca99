// Package oracle implements the lowest-priority source adapter: a language
// model behind an OpenAI-compatible chat completions endpoint. It fills in
// release year and genre when every catalog source comes up empty. Model
// output is never trusted blindly: anything that fails validation is
// treated as the model not knowing the track.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

const systemPrompt = `You identify music recordings. Given an artist and track title, respond with only a JSON object of the form {"year": "1994", "genre": "Grunge"}. The year is the original release year as a 4-digit string. The genre is a single broad genre label. If you do not recognize the recording, respond with {"year": "", "genre": ""}. Respond with the JSON object and nothing else.`

// Adapter implements source.Adapter and source.NameLookup for the oracle.
type Adapter struct {
	client   *http.Client
	limiter  *source.RateLimiterMap
	logger   *slog.Logger
	endpoint string
	apiKey   string
	model    string
}

// New creates an oracle adapter. The endpoint is the full chat completions
// URL, e.g. "https://api.openai.com/v1/chat/completions".
func New(endpoint, apiKey, model string, limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  limiter,
		logger:   logger.With(slog.String("source", "oracle")),
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() source.Name { return source.NameOracle }

// Priority returns the static priority rank; the oracle always ranks last.
func (a *Adapter) Priority() int { return source.Priority(source.NameOracle) }

// RequiresAuth returns true; the endpoint needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// LookupByName asks the model for the year and genre of a recording.
func (a *Adapter) LookupByName(ctx context.Context, artist, title string) (*source.PartialRecord, error) {
	if a.endpoint == "" || a.apiKey == "" {
		return nil, &source.ErrAuthRequired{Source: source.NameOracle}
	}
	if err := a.limiter.Wait(ctx, source.NameOracle); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameOracle,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	reqBody := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Artist: %s\nTitle: %s", artist, title)},
		},
		Temperature: 0,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameOracle, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		// continue
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &source.ErrAuthRequired{
			Source: source.NameOracle,
			Cause:  fmt.Errorf("status %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &source.ErrUnavailable{
			Source:     source.NameOracle,
			Cause:      fmt.Errorf("status %d", resp.StatusCode),
			RetryAfter: 5 * time.Second,
		}
	default:
		return nil, &source.ErrUnavailable{
			Source: source.NameOracle,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameOracle, Cause: err}
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, fmt.Errorf("parsing completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, &source.ErrNotFound{Source: source.NameOracle, Key: artist + " - " + title}
	}

	answer, ok := parseAnswer(chat.Choices[0].Message.Content)
	if !ok {
		a.logger.Debug("unusable model output",
			slog.String("artist", artist),
			slog.String("title", title))
		return nil, &source.ErrNotFound{Source: source.NameOracle, Key: artist + " - " + title}
	}

	p := &source.PartialRecord{}
	p.SetYear(answer.Year)
	if answer.Genre != "" {
		p.Genres = []string{answer.Genre}
	}
	if p.Empty() {
		return nil, &source.ErrNotFound{Source: source.NameOracle, Key: artist + " - " + title}
	}
	return p, nil
}

type oracleAnswer struct {
	Year  string `json:"year"`
	Genre string `json:"genre"`
}

// parseAnswer extracts and validates the model's JSON object. Models
// sometimes wrap the object in a markdown fence; that much leniency is
// allowed, anything else is rejected.
func parseAnswer(content string) (oracleAnswer, bool) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var answer oracleAnswer
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		return oracleAnswer{}, false
	}

	answer.Year = strings.TrimSpace(answer.Year)
	answer.Genre = strings.TrimSpace(answer.Genre)
	if answer.Year == "" && answer.Genre == "" {
		return oracleAnswer{}, false
	}
	if answer.Year != "" && !validYear(answer.Year) {
		return oracleAnswer{}, false
	}
	return answer, true
}

// validYear accepts 4-digit years in the recorded-music era.
func validYear(y string) bool {
	if len(y) != 4 {
		return false
	}
	for _, r := range y {
		if r < '0' || r > '9' {
			return false
		}
	}
	return y >= "1900" && y <= fmt.Sprintf("%d", time.Now().Year()+1)
}

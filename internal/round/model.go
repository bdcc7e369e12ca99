// Package round assembles and persists quiz rounds: the selection logic
// that picks songs from the corpus, and the ledger that records assembled
// rounds and their usage.
package round

import (
	"fmt"
	"time"
)

// Mode names a selection strategy.
type Mode string

// Known selection modes.
const (
	ModeRandom           Mode = "random"
	ModeGenre            Mode = "genre"
	ModeDecade           Mode = "decade"
	ModeTag              Mode = "tag"
	ModeLeastUsedGenre   Mode = "least_used_genre"
	ModeLeastUsedDecade  Mode = "least_used_decade"
	ModeExternalPlaylist Mode = "external_playlist"
)

// Criterion is the tagged description of how a round was assembled.
type Criterion struct {
	Mode Mode `json:"mode"`

	// Value holds the genre, decade, or tag name for the filter modes,
	// and the chosen bucket for the least-used modes.
	Value string `json:"value,omitempty"`

	// Service and PlaylistID identify an external playlist.
	Service    string `json:"service,omitempty"`
	PlaylistID string `json:"playlist_id,omitempty"`
}

// Validate checks the criterion is structurally sound.
func (c Criterion) Validate() error {
	switch c.Mode {
	case ModeRandom, ModeLeastUsedGenre, ModeLeastUsedDecade:
		return nil
	case ModeGenre, ModeDecade, ModeTag:
		if c.Value == "" {
			return fmt.Errorf("criterion %s requires a value", c.Mode)
		}
		return nil
	case ModeExternalPlaylist:
		if c.Service == "" || c.PlaylistID == "" {
			return fmt.Errorf("criterion %s requires a service and playlist id", c.Mode)
		}
		return nil
	default:
		return fmt.Errorf("unknown selection mode: %q", c.Mode)
	}
}

// String renders the criterion for logs and round names.
func (c Criterion) String() string {
	switch c.Mode {
	case ModeGenre, ModeDecade, ModeTag:
		return fmt.Sprintf("%s(%s)", c.Mode, c.Value)
	case ModeExternalPlaylist:
		return fmt.Sprintf("%s(%s:%s)", c.Mode, c.Service, c.PlaylistID)
	default:
		return string(c.Mode)
	}
}

// Round is one assembled music round. Songs are referenced by ID only; the
// corpus owns the records.
type Round struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Criterion Criterion  `json:"criterion"`
	SongIDs   []string   `json:"song_ids"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
}

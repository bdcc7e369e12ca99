package acrcloud

// tracksResponse is the external metadata response, trimmed to what we read.
type tracksResponse struct {
	Data []trackResult `json:"data"`
}

type trackResult struct {
	Name        string   `json:"name"`
	ISRC        string   `json:"isrc"`
	Duration    int      `json:"duration_ms"`
	ReleaseDate string   `json:"release_date"`
	Artists     []artist `json:"artists"`
	Album       album    `json:"album"`

	// Genres arrives in several shapes across catalogs: a list of strings,
	// a list of {name} objects, or a single string.
	Genres any `json:"genres"`

	ExternalMetadata externalMetadata `json:"external_metadata"`
}

type artist struct {
	Name string `json:"name"`
}

type album struct {
	Name   string `json:"name"`
	Covers []struct {
		URL string `json:"url"`
	} `json:"covers"`
}

// externalMetadata carries per-platform track blocks.
type externalMetadata struct {
	Spotify    *platformBlock `json:"spotify"`
	Deezer     *platformBlock `json:"deezer"`
	AppleMusic *platformBlock `json:"applemusic"`
	YouTube    *youtubeBlock  `json:"youtube"`
}

type platformBlock struct {
	Track struct {
		ID      string `json:"id"`
		Preview string `json:"preview"`
	} `json:"track"`
	Album struct {
		Cover string `json:"cover"`
	} `json:"album"`
}

type youtubeBlock struct {
	VID string `json:"vid"`
}

// errorResponse is ACRCloud's error payload.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

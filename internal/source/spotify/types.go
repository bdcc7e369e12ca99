package spotify

// trackObject is the Spotify track object, trimmed to the fields we read.
type trackObject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Popularity  int    `json:"popularity"`
	PreviewURL  string `json:"preview_url"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	Artists []artistObject `json:"artists"`
	Album   albumObject    `json:"album"`
}

type artistObject struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

type albumObject struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []imageObject  `json:"images"`
	Artists     []artistObject `json:"artists"`
}

type imageObject struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// searchResponse is the /search payload for any requested type.
type searchResponse struct {
	Tracks struct {
		Items []trackObject `json:"items"`
	} `json:"tracks"`
	Albums struct {
		Items []albumObject `json:"items"`
	} `json:"albums"`
	Playlists struct {
		Items []playlistObject `json:"items"`
	} `json:"playlists"`
}

type playlistObject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
}

// playlistTracksResponse is one page of /playlists/{id}/tracks.
type playlistTracksResponse struct {
	Items []struct {
		Track *trackObject `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

// albumTracksResponse is one page of /albums/{id}/tracks. Simplified track
// objects carry no external IDs, so refs are resolved by service ID.
type albumTracksResponse struct {
	Items []struct {
		ID      string         `json:"id"`
		Name    string         `json:"name"`
		Artists []artistObject `json:"artists"`
	} `json:"items"`
	Next string `json:"next"`
}

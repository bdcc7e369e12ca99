package deezer

// trackResult is the Deezer track object, trimmed to the fields we read.
type trackResult struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ISRC        string `json:"isrc"`
	Preview     string `json:"preview"`
	ReleaseDate string `json:"release_date"`
	Artist      struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		ID      int    `json:"id"`
		Title   string `json:"title"`
		CoverXL  string `json:"cover_xl"`
		CoverBig string `json:"cover_big"`
	} `json:"album"`
	Error *apiError `json:"error"`
}

// listingResult is a Deezer playlist or album with its track listing.
type listingResult struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Tracks struct {
		Data []listedTrack `json:"data"`
	} `json:"tracks"`
	Error *apiError `json:"error"`
}

type listedTrack struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	ISRC   string `json:"isrc"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// apiError is Deezer's in-band error payload, returned with HTTP 200.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

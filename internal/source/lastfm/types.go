package lastfm

// trackInfoResponse is the track.getInfo payload, trimmed to what we read.
// Errors arrive in-band with HTTP 200.
type trackInfoResponse struct {
	Track   *trackInfo `json:"track"`
	Error   int        `json:"error"`
	Message string     `json:"message"`
}

type trackInfo struct {
	Name   string `json:"name"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album *struct {
		Title string  `json:"title"`
		Image []image `json:"image"`
	} `json:"album"`
	TopTags struct {
		Tag []tag `json:"tag"`
	} `json:"toptags"`
}

type image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type tag struct {
	Name string `json:"name"`
}

// Error codes the adapter distinguishes.
const (
	codeInvalidParams = 6  // also "track not found"
	codeInvalidKey    = 10
	codeOffline       = 11
	codeRateLimited   = 29
)

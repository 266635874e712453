package models

// ArchiveTokenRequest is the body for POST /api/v0/cameras/this/
type ArchiveTokenRequest struct {
	Fields         []string `json:"fields"`
	TokenDTTL      int      `json:"token_d_ttl"`
	TokenDDuration int      `json:"token_d_duration"`
	TokenDStart    int64    `json:"token_d_start"`
	Numbers        []string `json:"numbers"`
}

type ArchiveTokenResponse struct {
	Results []ArchiveToken `json:"results"`
}

type ArchiveToken struct {
	Number string `json:"number"`
	TokenD string `json:"token_d"` // download token scoped to the window
}

// ArchiveLink is computed per request and never cached.
type ArchiveLink struct {
	URL      string `json:"url"`
	Token    string `json:"token"`
	CameraID string `json:"camera_id"`
	Start    int64  `json:"start"`
	Duration int    `json:"duration"`
}

package models

// CameraListRequest is the body for POST /api/v0/cameras/my/
type CameraListRequest struct {
	OrderBy   string   `json:"order_by"`
	Fields    []string `json:"fields"`
	TokenLTTL int      `json:"token_l_ttl"` // lifetime of token_l in seconds
	Page      int      `json:"page"`
	PageSize  int      `json:"page_size"`
}

// CameraListResponse is one page of the camera inventory.
// Count is the total advertised by the backend; paging does not rely on it.
type CameraListResponse struct {
	Count   int         `json:"count"`
	Results []RawCamera `json:"results"`
}

// RawCamera mirrors a single entry of the listing. Only the fields we consume
// are decoded.
type RawCamera struct {
	Number    string       `json:"number"`
	Title     string       `json:"title"`
	Address   string       `json:"address"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	IsFav     bool         `json:"is_fav"`
	IsPublic  bool         `json:"is_public"`
	Server    CameraServer `json:"server"`
	Tariff    CameraTariff `json:"tariff"`
	TokenL    string       `json:"token_l"` // resource token embedded in URLs
}

type CameraServer struct {
	Domain           string `json:"domain"`
	ScreenshotDomain string `json:"screenshot_domain"`
	VendorName       string `json:"vendor_name"`
}

type CameraTariff struct {
	Name     string `json:"name"`
	DVRHours int    `json:"dvr_hours"`
}

// Camera is the normalized record kept in memory, keyed by ID.
type Camera struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Address          string     `json:"address,omitempty"`
	Domain           string     `json:"domain"`
	ScreenshotDomain string     `json:"screenshot_domain"`
	Token            string     `json:"token"`
	DVRHours         int        `json:"dvr_hours,omitempty"`
	URLs             CameraURLs `json:"urls"`
}

// CameraURLs holds the capability URLs derived from the resource token.
type CameraURLs struct {
	Stream     string `json:"stream"`
	WSStream   string `json:"ws_stream"`
	Screenshot string `json:"screenshot"`
}

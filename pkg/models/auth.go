package models

// PortalLoginPayload is the body for POST /api/v1/auth/auth_by_contract/
type PortalLoginPayload struct {
	Contract string `json:"contract"`
	Password string `json:"password"`
}

// PortalLoginResponse carries the portal token and its explicit expiry.
type PortalLoginResponse struct {
	Token struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
		Exp     int64  `json:"exp"`
	} `json:"token"`
}

// CamsAuthResponse is returned by POST /api/v0/auth/ on the camera service.
type CamsAuthResponse struct {
	Token string `json:"token"`
}

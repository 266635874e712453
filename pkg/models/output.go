package models

// SharedDevice is an access-control device (intercom, gate) shared with the
// account. CameraID links it to a camera when the device has one.
type SharedDevice struct {
	ID       int     `json:"id"`
	CameraID *string `json:"cctv_number"`
	Title    string  `json:"string_view"`
	Timeout  int     `json:"timeout"` // seconds until the lock closes again
}

// UnlockResponse is whatever the open endpoint answers; it is not interpreted.
type UnlockResponse map[string]any

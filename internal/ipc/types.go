package ipc

import (
	"camwatch/internal/display"
	"camwatch/internal/journal"
	"camwatch/internal/resources"
	"camwatch/internal/session"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and camera status information.
type StatusResponse struct {
	Running     bool             `json:"running"`
	PID         int              `json:"pid"`
	LockPath    string           `json:"lock_path"`
	JournalPath string           `json:"journal_path"`
	APIAddress  string           `json:"api_address"`
	Hotplug     bool             `json:"hotplug"`
	Host        resources.Sample `json:"host"`
	Cameras     []session.Status `json:"cameras"`
}

// CameraRequest names a camera for lifecycle operations.
type CameraRequest struct {
	Name   string `json:"name"`
	Reason string `json:"reason,omitempty"`
}

// CameraResponse carries a camera's status after an operation.
type CameraResponse struct {
	Camera session.Status `json:"camera"`
}

// ToggleResponse reports whether the camera is now wanted.
type ToggleResponse struct {
	Running bool           `json:"running"`
	Camera  session.Status `json:"camera"`
}

// ViewRequest adjusts a camera's live view.
type ViewRequest struct {
	Name      string  `json:"name"`
	ZoomDelta float64 `json:"zoom_delta"`
	PanDX     float64 `json:"pan_dx"`
	PanDY     float64 `json:"pan_dy"`
	Reset     bool    `json:"reset"`
}

// ViewResponse reports the live view after the change.
type ViewResponse struct {
	View display.ViewState `json:"view"`
}

// CaptureRequest holds the current frame for a later save.
type CaptureRequest struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// CaptureResponse reports whether a frame was held.
type CaptureResponse struct {
	Captured bool `json:"captured"`
}

// SaveResponse describes the written capture.
type SaveResponse struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Label  string `json:"label"`
}

// FrameRequest fetches the latest frame as JPEG. A zero viewport returns the
// full-resolution frame.
type FrameRequest struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FrameResponse carries JPEG bytes.
type FrameResponse struct {
	JPEG []byte `json:"jpeg"`
}

// JournalRequest filters journal listings.
type JournalRequest struct {
	Camera string `json:"camera"`
	Limit  int    `json:"limit"`
}

// CapturesResponse lists journaled captures.
type CapturesResponse struct {
	Captures []journal.Capture `json:"captures"`
}

// EventsResponse lists journaled lifecycle events.
type EventsResponse struct {
	Events []journal.Event `json:"events"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the test notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges a shutdown request.
type ShutdownResponse struct {
	Accepted bool `json:"accepted"`
}

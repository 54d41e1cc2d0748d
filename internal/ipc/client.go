package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Start starts a camera.
func (c *Client) Start(name string) (*CameraResponse, error) {
	return call[CameraResponse](c, "Start", CameraRequest{Name: name})
}

// Stop stops a camera.
func (c *Client) Stop(name string) (*CameraResponse, error) {
	return call[CameraResponse](c, "Stop", CameraRequest{Name: name})
}

// Restart restarts a camera, recording reason in its event history.
func (c *Client) Restart(name, reason string) (*CameraResponse, error) {
	return call[CameraResponse](c, "Restart", CameraRequest{Name: name, Reason: reason})
}

// Toggle starts a stopped camera or stops a running one.
func (c *Client) Toggle(name string) (*ToggleResponse, error) {
	return call[ToggleResponse](c, "Toggle", CameraRequest{Name: name})
}

// Zoom changes the live view zoom by delta.
func (c *Client) Zoom(name string, delta float64) (*ViewResponse, error) {
	return call[ViewResponse](c, "View", ViewRequest{Name: name, ZoomDelta: delta})
}

// Pan moves the live view.
func (c *Client) Pan(name string, dx, dy float64) (*ViewResponse, error) {
	return call[ViewResponse](c, "View", ViewRequest{Name: name, PanDX: dx, PanDY: dy})
}

// ResetView clears zoom and pan.
func (c *Client) ResetView(name string) (*ViewResponse, error) {
	return call[ViewResponse](c, "View", ViewRequest{Name: name, Reset: true})
}

// Capture holds the camera's current frame for a later Save.
func (c *Client) Capture(name, label string) (*CaptureResponse, error) {
	return call[CaptureResponse](c, "Capture", CaptureRequest{Name: name, Label: label})
}

// Save writes the held capture to disk.
func (c *Client) Save(name string) (*SaveResponse, error) {
	return call[SaveResponse](c, "Save", CameraRequest{Name: name})
}

// Frame fetches the latest frame as JPEG, fitted to the viewport when one is given.
func (c *Client) Frame(name string, width, height int) (*FrameResponse, error) {
	return call[FrameResponse](c, "Frame", FrameRequest{Name: name, Width: width, Height: height})
}

// Captures lists journaled captures, optionally for one camera.
func (c *Client) Captures(camera string, limit int) (*CapturesResponse, error) {
	return call[CapturesResponse](c, "Captures", JournalRequest{Camera: camera, Limit: limit})
}

// Events lists journaled lifecycle events, optionally for one camera.
func (c *Client) Events(camera string, limit int) (*EventsResponse, error) {
	return call[EventsResponse](c, "Events", JournalRequest{Camera: camera, Limit: limit})
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	return call[ShutdownResponse](c, "Shutdown", ShutdownRequest{})
}

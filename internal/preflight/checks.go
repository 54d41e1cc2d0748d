package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"camwatch/internal/config"
	"camwatch/internal/device"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCamera resolves a camera's configured source and runs the check that
// matches its kind.
func CheckCamera(ctx context.Context, cam config.Camera, timeout time.Duration) Result {
	name := "Camera " + cam.Name
	loc, err := device.ParseLocator(cam.ResolvedSource(), cam.Kind)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if loc.Kind == device.KindDevice {
		return CheckDeviceNode(name, DeviceNode(loc.Index))
	}
	return CheckStreamReachable(ctx, name, loc.URL, timeout)
}

// DeviceNode returns the V4L2 node for a device index.
func DeviceNode(index int) string {
	return "/dev/video" + strconv.Itoa(index)
}

// CheckDeviceNode verifies that a capture device node exists and can be opened
// for reading and writing by the current user.
func CheckDeviceNode(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not present)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a character device)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v; is the user in the video group?)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (device ok)", path)}
}

// CheckStreamReachable dials the host of a stream or snapshot URL. It checks
// reachability only; credentials and media negotiation are left to the
// capture loop.
func CheckStreamReachable(ctx context.Context, name, rawURL string, timeout time.Duration) Result {
	display := device.Redact(rawURL)
	addr, err := dialAddress(rawURL)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", display, err)}
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(checkCtx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", display, summarizeDialError(err))}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", display)}
}

func dialAddress(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.New("missing host")
	}
	port := u.Port()
	if port == "" {
		port = defaultPort(u.Scheme)
		if port == "" {
			return "", fmt.Errorf("no default port for scheme %q", u.Scheme)
		}
	}
	return net.JoinHostPort(host, port), nil
}

func defaultPort(scheme string) string {
	switch scheme {
	case "rtsp":
		return "554"
	case "rtsps":
		return "322"
	case "rtmp":
		return "1935"
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

func summarizeDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "connection timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "connection timed out"
	}
	if errors.Is(err, unix.ECONNREFUSED) {
		return "connection refused"
	}
	return err.Error()
}

// Package device defines the source abstraction the capture engine consumes.
//
// A Source opens a Handle for a Locator; the handle reads decoded frames until
// it is released. Adapters for local capture devices and network streams live
// in the opencv subpackage, HTTP snapshot polling in httppoll, and a scripted
// fake for tests in devicetest.
package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strconv"
	"strings"
	"time"

	"camwatch/internal/services"
)

// Kind identifies how a source is reached.
type Kind int

const (
	KindUnknown Kind = iota
	KindDevice
	KindStream
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindStream:
		return "stream"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Network reports whether frames travel over the network.
func (k Kind) Network() bool {
	return k == KindStream || k == KindHTTP
}

// Locator is a parsed camera source.
type Locator struct {
	Kind  Kind
	Index int
	URL   string
}

// String returns the source with any credentials removed.
func (l Locator) String() string {
	if l.Kind == KindDevice {
		return strconv.Itoa(l.Index)
	}
	return Redact(l.URL)
}

// ParseLocator resolves a configured source string. kind may be "auto",
// "device", "stream", or "http"; auto infers the kind from the source.
// Missing or malformed sources are configuration errors.
func ParseLocator(source, kind string) (Locator, error) {
	source = strings.TrimSpace(source)
	kind = strings.ToLower(strings.TrimSpace(kind))
	if source == "" {
		return Locator{}, services.Wrap(services.ErrConfiguration, "", "parse source", "source is empty", nil)
	}

	if idx, err := strconv.Atoi(source); err == nil {
		if idx < 0 {
			return Locator{}, services.Wrap(services.ErrConfiguration, "", "parse source", "device index must be >= 0", nil)
		}
		if kind != "" && kind != "auto" && kind != "device" {
			return Locator{}, services.Wrap(services.ErrConfiguration, "", "parse source", fmt.Sprintf("device index given for kind %q", kind), nil)
		}
		return Locator{Kind: KindDevice, Index: idx}, nil
	}
	if strings.HasPrefix(source, "/dev/video") {
		idx, err := strconv.Atoi(strings.TrimPrefix(source, "/dev/video"))
		if err != nil || idx < 0 {
			return Locator{}, services.Wrap(services.ErrConfiguration, "", "parse source", "invalid device node "+source, nil)
		}
		return Locator{Kind: KindDevice, Index: idx}, nil
	}

	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Locator{}, services.Wrap(services.ErrConfiguration, "", "parse source", "source is neither a device index nor a URL", err)
	}
	switch kind {
	case "stream":
		return Locator{Kind: KindStream, URL: source}, nil
	case "http":
		return Locator{Kind: KindHTTP, URL: source}, nil
	case "device":
		return Locator{}, services.Wrap(services.ErrConfiguration, "", "parse source", "URL given for kind device", nil)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return Locator{Kind: KindHTTP, URL: source}, nil
	default:
		return Locator{Kind: KindStream, URL: source}, nil
	}
}

// Redact strips userinfo from a URL string.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}

// Params carries the connection parameters for one open.
type Params struct {
	Locator    Locator
	Width      int
	Height     int
	FPS        float64
	BufferSize int
	// Warmup is how long network streams are given to settle after opening.
	Warmup time.Duration
	// Timeout bounds a single read where the adapter supports it.
	Timeout time.Duration
}

// Source opens device handles.
type Source interface {
	Open(ctx context.Context, params Params) (Handle, error)
}

// Handle is an open device. Read returns one decoded frame; Release frees the
// device and must be safe to call more than once.
type Handle interface {
	Read(ctx context.Context) (image.Image, error)
	Release() error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, params Params) (Handle, error)

func (f SourceFunc) Open(ctx context.Context, params Params) (Handle, error) {
	return f(ctx, params)
}

// ErrNoAdapter is returned by Router when no source is wired for a kind.
var ErrNoAdapter = errors.New("no adapter for source kind")

// Router dispatches Open calls to the adapter registered for the locator kind.
type Router struct {
	Device Source
	Stream Source
	HTTP   Source
}

func (r Router) Open(ctx context.Context, params Params) (Handle, error) {
	var src Source
	switch params.Locator.Kind {
	case KindDevice:
		src = r.Device
	case KindStream:
		src = r.Stream
	case KindHTTP:
		src = r.HTTP
	}
	if src == nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "open", params.Locator.Kind.String(), ErrNoAdapter)
	}
	return src.Open(ctx, params)
}

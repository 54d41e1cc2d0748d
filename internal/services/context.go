package services

import "context"

type contextKey string

const (
	cameraKey    contextKey = "camera"
	cycleKey     contextKey = "cycle_id"
	requestIDKey contextKey = "request_id"
)

// WithCamera annotates context with the camera session name.
func WithCamera(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, cameraKey, name)
}

// CameraFromContext returns the camera session name if present.
func CameraFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cameraKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCycleID annotates context with the capture cycle identifier. A new
// cycle begins each time a session launches its capture loop.
func WithCycleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleKey, id)
}

// CycleIDFromContext returns the capture cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

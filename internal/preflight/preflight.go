package preflight

import (
	"context"

	"camwatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the directory checks and one source check per camera.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Capture directory", cfg.Paths.CaptureDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	for _, cam := range cfg.Cameras {
		results = append(results, CheckCamera(ctx, cam, cfg.Capture.HTTPTimeout()))
	}
	return results
}

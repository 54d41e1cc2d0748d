package resources

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/procfs"
)

// Provider reports host load.
type Provider interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
}

// ProcProvider reads /proc. CPU usage is the busy share of jiffies since the
// previous call, so the first call reports the average since boot.
type ProcProvider struct {
	fs procfs.FS

	mu        sync.Mutex
	prevBusy  float64
	prevTotal float64
}

// NewProcProvider opens the proc filesystem at mountPoint, "/proc" when empty.
func NewProcProvider(mountPoint string) (*ProcProvider, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &ProcProvider{fs: fs}, nil
}

func (p *ProcProvider) CPUPercent(context.Context) (float64, error) {
	stat, err := p.fs.Stat()
	if err != nil {
		return 0, fmt.Errorf("read cpu stat: %w", err)
	}
	c := stat.CPUTotal
	idle := c.Idle + c.Iowait
	busy := c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	total := idle + busy

	p.mu.Lock()
	defer p.mu.Unlock()
	dBusy := busy - p.prevBusy
	dTotal := total - p.prevTotal
	p.prevBusy, p.prevTotal = busy, total
	if dTotal <= 0 {
		return 0, nil
	}
	return clampPercent(100 * dBusy / dTotal), nil
}

func (p *ProcProvider) MemoryPercent(context.Context) (float64, error) {
	info, err := p.fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}
	if info.MemTotal == nil || *info.MemTotal == 0 {
		return 0, fmt.Errorf("meminfo: MemTotal missing")
	}
	total := float64(*info.MemTotal)
	var available float64
	switch {
	case info.MemAvailable != nil:
		available = float64(*info.MemAvailable)
	case info.MemFree != nil:
		available = float64(*info.MemFree)
	}
	return clampPercent(100 * (total - available) / total), nil
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

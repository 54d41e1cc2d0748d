package daemon

import (
	"context"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"camwatch/internal/device"
	"camwatch/internal/logging"
)

// hotplugMonitor listens for udev netlink events on the video4linux subsystem
// so a camera that was unplugged and plugged back in restarts without waiting
// for the watchdog's stale window.
type hotplugMonitor struct {
	logger  *slog.Logger
	handler func(ctx context.Context, index int, action string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newHotplugMonitor(logger *slog.Logger, handler func(ctx context.Context, index int, action string)) *hotplugMonitor {
	return &hotplugMonitor{
		logger:  logging.NewComponentLogger(logger, "hotplug"),
		handler: handler,
	}
}

// Start begins listening for udev netlink events. Failing to connect is not
// fatal: the watchdog still recovers replugged cameras.
func (m *hotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; replugged cameras recover on the watchdog interval",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "hotplug restarts unavailable"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *hotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *hotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *hotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildHotplugMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "hotplug restarts may be missed"),
			)
		}
	}
}

// buildHotplugMatcher matches SUBSYSTEM=video4linux with ACTION=add|remove.
func buildHotplugMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *hotplugMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	index, ok := videoIndex(uevent)
	if !ok {
		m.logger.Debug("ignoring event without video device",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	m.logger.Info("video device event",
		logging.String(logging.FieldEventType, "hotplug_event"),
		logging.String("action", string(uevent.Action)),
		logging.Int("index", index),
	)
	if m.handler != nil {
		m.handler(ctx, index, string(uevent.Action))
	}
}

// videoIndex extracts N from DEVNAME=/dev/videoN, falling back to the last
// DEVPATH element.
func videoIndex(uevent netlink.UEvent) (int, bool) {
	name := uevent.Env["DEVNAME"]
	if name == "" {
		name = uevent.Env["DEVPATH"]
	}
	if name == "" {
		return 0, false
	}
	base := path.Base(name)
	if !strings.HasPrefix(base, "video") {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(base, "video"))
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// handleHotplug restarts wanted local-device sessions bound to a re-added
// index. Removals are only logged; the capture loop notices the failed reads.
func (d *Daemon) handleHotplug(ctx context.Context, index int, action string) {
	if action != string(netlink.ADD) {
		return
	}
	for _, key := range d.order {
		s := d.sessions[key]
		loc := s.Locator()
		if loc.Kind != device.KindDevice || loc.Index != index || !s.ShouldRun() {
			continue
		}
		go func() {
			if err := s.Restart(ctx, "hotplug"); err != nil {
				d.logger.Debug("hotplug restart skipped",
					logging.String(logging.FieldCamera, s.Name()),
					logging.Error(err),
				)
			}
		}()
	}
}

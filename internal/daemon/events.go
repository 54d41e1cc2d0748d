package daemon

import (
	"context"
	"log/slog"
	"time"

	"camwatch/internal/journal"
	"camwatch/internal/logging"
	"camwatch/internal/services"
	"camwatch/internal/snapshot"
	"camwatch/internal/watchdog"
)

const journalWriteTimeout = 5 * time.Second

// eventListener fans session events out to metrics, the journal and
// notifications. Notifications are sent off the session goroutine.
type eventListener struct {
	daemon *Daemon
	logger *slog.Logger
}

func (l *eventListener) CycleStarted(camera, cycleID string) {
	l.daemon.metrics.SessionRunning.WithLabelValues(camera).Set(1)
	l.record(camera, journal.EventCycleStarted, "", cycleID)
}

func (l *eventListener) CycleEnded(camera, cycleID string, err error) {
	l.daemon.metrics.SessionRunning.WithLabelValues(camera).Set(0)
	reason, detail := "", cycleID
	if err != nil {
		reason = services.ErrorKind(err)
		detail = cycleID + ": " + err.Error()
	}
	l.record(camera, journal.EventCycleEnded, reason, detail)
}

func (l *eventListener) Restarted(camera, reason string) {
	l.daemon.metrics.Restarts.WithLabelValues(camera, reason).Inc()
	l.record(camera, journal.EventRestarted, reason, "")
	l.notify(func(ctx context.Context) error {
		return l.daemon.notifier.NotifyCameraRestarted(ctx, camera, reason)
	})
}

func (l *eventListener) Saved(camera string, res snapshot.Result) {
	l.daemon.metrics.ObserveSave(camera, nil)
	if j := l.daemon.journal; j != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		defer cancel()
		_, err := j.RecordCapture(ctx, journal.Capture{
			Camera:     camera,
			Path:       res.Path,
			Label:      res.Meta.Label,
			Width:      res.Meta.Width,
			Height:     res.Meta.Height,
			Bytes:      res.Bytes,
			CapturedAt: res.Meta.CapturedAt,
		})
		if err != nil {
			l.journalFailed(camera, err)
		}
	}
	l.notify(func(ctx context.Context) error {
		return l.daemon.notifier.NotifyCaptureSaved(ctx, camera, res.Path)
	})
}

func (l *eventListener) SaveFailed(camera string, err error) {
	l.daemon.metrics.ObserveSave(camera, err)
	l.record(camera, journal.EventSaveFailed, services.ErrorKind(err), err.Error())
	l.notify(func(ctx context.Context) error {
		return l.daemon.notifier.NotifySaveFailed(ctx, camera, err)
	})
}

func (l *eventListener) record(camera string, kind journal.EventKind, reason, detail string) {
	j := l.daemon.journal
	if j == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := j.RecordEvent(ctx, camera, kind, reason, detail); err != nil {
		l.journalFailed(camera, err)
	}
}

func (l *eventListener) journalFailed(camera string, err error) {
	logging.WarnWithContext(l.logger, "journal write failed", "journal_write_failed",
		logging.String(logging.FieldCamera, camera),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check free space and permissions in the state directory"),
		logging.String(logging.FieldImpact, "event missing from capture history"),
	)
}

func (l *eventListener) notify(send func(ctx context.Context) error) {
	timeout := l.daemon.cfg.Notifications.NotifyTimeout()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			l.logger.Warn("notification failed", logging.Error(err))
		}
	}()
}

func (d *Daemon) watchdogAction(action watchdog.Action, err error) {
	if err != nil || action.Reason != watchdog.ReasonStale {
		return
	}
	listener := &eventListener{daemon: d, logger: d.logger}
	listener.record(action.Camera, journal.EventStale, action.Reason, action.Age.String())
	listener.notify(func(ctx context.Context) error {
		return d.notifier.NotifyCameraStale(ctx, action.Camera, action.Age)
	})
}

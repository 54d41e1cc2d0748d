package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Capture is one saved snapshot.
type Capture struct {
	ID         string    `json:"id"`
	Camera     string    `json:"camera"`
	Path       string    `json:"path"`
	Label      string    `json:"label,omitempty"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Bytes      int64     `json:"bytes"`
	CapturedAt time.Time `json:"captured_at"`
	SavedAt    time.Time `json:"saved_at"`
}

// EventKind classifies journal events.
type EventKind string

const (
	EventCycleStarted EventKind = "cycle_started"
	EventCycleEnded   EventKind = "cycle_ended"
	EventRestarted    EventKind = "restarted"
	EventStale        EventKind = "stale"
	EventSaveFailed   EventKind = "save_failed"
	EventHotplug      EventKind = "hotplug"
)

// Event is one camera lifecycle record.
type Event struct {
	ID        int64     `json:"id"`
	Camera    string    `json:"camera"`
	Kind      EventKind `json:"kind"`
	Reason    string    `json:"reason,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const captureColumns = "id, camera, path, label, width, height, bytes, captured_at, saved_at"

// RecordCapture stores a saved capture and returns it with its assigned ID.
func (s *Store) RecordCapture(ctx context.Context, c Capture) (Capture, error) {
	if strings.TrimSpace(c.Camera) == "" || strings.TrimSpace(c.Path) == "" {
		return Capture{}, fmt.Errorf("record capture: camera and path are required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = s.now()
	}
	if c.CapturedAt.IsZero() {
		c.CapturedAt = c.SavedAt
	}
	err := s.exec(ctx,
		`INSERT INTO captures (`+captureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Camera, c.Path, nullableString(c.Label), c.Width, c.Height, c.Bytes,
		formatTime(c.CapturedAt), formatTime(c.SavedAt),
	)
	if err != nil {
		return Capture{}, fmt.Errorf("insert capture: %w", err)
	}
	return c, nil
}

// RecordEvent appends a lifecycle event.
func (s *Store) RecordEvent(ctx context.Context, camera string, kind EventKind, reason, detail string) error {
	err := s.exec(ctx,
		`INSERT INTO events (camera, kind, reason, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		camera, string(kind), nullableString(reason), nullableString(detail), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListCaptures returns the newest captures first. An empty camera lists all
// cameras; a non-positive limit returns every row.
func (s *Store) ListCaptures(ctx context.Context, camera string, limit int) ([]Capture, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + captureColumns + ` FROM captures`
	var args []any
	if camera != "" {
		query += ` WHERE camera = ?`
		args = append(args, camera)
	}
	query += ` ORDER BY saved_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	defer rows.Close()

	var out []Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListEvents returns the newest events first.
func (s *Store) ListEvents(ctx context.Context, camera string, limit int) ([]Event, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, camera, kind, reason, detail, created_at FROM events`
	var args []any
	if camera != "" {
		query += ` WHERE camera = ?`
		args = append(args, camera)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev      Event
			kind    string
			reason  sql.NullString
			detail  sql.NullString
			created string
		)
		if err := rows.Scan(&ev.ID, &ev.Camera, &kind, &reason, &detail, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = EventKind(kind)
		ev.Reason = reason.String
		ev.Detail = detail.String
		if t, err := parseTimeString(created); err == nil {
			ev.CreatedAt = t
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PruneEvents deletes events older than the cutoff and returns how many were removed.
func (s *Store) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, formatTime(before))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return removed, nil
}

func scanCapture(scanner interface{ Scan(dest ...any) error }) (Capture, error) {
	var (
		c           Capture
		label       sql.NullString
		capturedRaw string
		savedRaw    string
	)
	if err := scanner.Scan(&c.ID, &c.Camera, &c.Path, &label, &c.Width, &c.Height, &c.Bytes, &capturedRaw, &savedRaw); err != nil {
		return Capture{}, err
	}
	c.Label = label.String
	if t, err := parseTimeString(capturedRaw); err == nil {
		c.CapturedAt = t
	}
	if t, err := parseTimeString(savedRaw); err == nil {
		c.SavedAt = t
	}
	return c, nil
}

package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDeviceOpen      = errors.New("device open error")
	ErrDeviceQuality   = errors.New("device quality error")
	ErrFrameRead       = errors.New("frame read error")
	ErrStaleConnection = errors.New("stale connection")
	ErrSaveIO          = errors.New("save io error")
	ErrConfiguration   = errors.New("configuration error")
	ErrBusy            = errors.New("transition already in progress")
	ErrNothingToSave   = errors.New("nothing to save")
	ErrNotFound        = errors.New("not found")
)

// Wrap builds an error message that includes camera context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, camera, operation, message string, err error) error {
	detail := buildDetail(camera, operation, message)
	if marker == nil {
		marker = ErrFrameRead
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// SaveReason distinguishes the persistence failures surfaced by a save.
type SaveReason string

const (
	SaveReasonPermission SaveReason = "permission"
	SaveReasonDiskFull   SaveReason = "disk_full"
	SaveReasonEncode     SaveReason = "encode"
	SaveReasonEmptyFile  SaveReason = "empty_file"
	SaveReasonIO         SaveReason = "io"
)

// SaveError reports a failed capture write. It always matches ErrSaveIO.
type SaveError struct {
	Reason SaveReason
	Path   string
	Err    error
}

func (e *SaveError) Error() string {
	var b strings.Builder
	b.WriteString("save capture")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Reason))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SaveError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSaveIO}
	}
	return []error{ErrSaveIO, e.Err}
}

// ErrorKind maps an error onto its taxonomy name for status output and journals.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrDeviceQuality):
		return "device_quality"
	case errors.Is(err, ErrDeviceOpen):
		return "device_open"
	case errors.Is(err, ErrStaleConnection):
		return "stale_connection"
	case errors.Is(err, ErrFrameRead):
		return "frame_read"
	case errors.Is(err, ErrSaveIO):
		return "save_io"
	case errors.Is(err, ErrNothingToSave):
		return "nothing_to_save"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

func buildDetail(camera, operation, message string) string {
	parts := make([]string, 0, 3)
	if camera = strings.TrimSpace(camera); camera != "" {
		parts = append(parts, camera)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "camera failure"
	}
	return strings.Join(parts, ": ")
}

package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const maxLineBytes = 1024 * 1024

// Filter reports whether a line should be kept.
type Filter func(line string) bool

// Options selects what Read returns. A negative Offset means "the last Limit
// lines"; otherwise reading starts at Offset.
type Options struct {
	Offset int64
	Limit  int
	Filter Filter
}

// Chunk is a batch of lines and the offset just past them.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Read returns lines from path per opts. A missing file yields an empty chunk.
func Read(path string, opts Options) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{}, nil
		}
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Chunk{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Chunk{}, fmt.Errorf("log path %q is a directory", path)
	}

	if opts.Offset < 0 {
		return lastLines(file, info.Size(), opts.Limit, opts.Filter)
	}
	start := opts.Offset
	if start > info.Size() {
		// The file was truncated or replaced; start over.
		start = 0
	}
	return linesFrom(file, start, opts.Filter)
}

// Follow calls emit with each batch of lines appended after offset, polling
// every interval until ctx ends. Cancellation is not an error.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, filter Filter, emit func([]string) error) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		chunk, err := Read(path, Options{Offset: offset, Filter: filter})
		if err != nil {
			return err
		}
		offset = chunk.Offset
		if len(chunk.Lines) > 0 {
			if err := emit(chunk.Lines); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// CameraFilter keeps lines attributed to camera in the console format
// ("component[camera]: msg" or "camera: msg") or the JSON format.
func CameraFilter(camera string) Filter {
	camera = strings.TrimSpace(camera)
	if camera == "" {
		return nil
	}
	needles := []string{
		"[" + camera + "]: ",
		" " + camera + ": ",
		`"camera":"` + camera + `"`,
	}
	return func(line string) bool {
		for _, n := range needles {
			if strings.Contains(line, n) {
				return true
			}
		}
		return false
	}
}

func lastLines(file *os.File, size int64, limit int, filter Filter) (Chunk, error) {
	if limit <= 0 {
		return Chunk{Offset: size}, nil
	}
	ring := make([]string, 0, limit)
	scanner := newScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if filter != nil && !filter(line) {
			continue
		}
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return Chunk{}, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return Chunk{}, fmt.Errorf("determine log offset: %w", err)
	}
	return Chunk{Lines: ring, Offset: offset}, nil
}

func linesFrom(file *os.File, start int64, filter Filter) (Chunk, error) {
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("seek log file: %w", err)
	}
	// Only complete lines are consumed so a half-written record is picked up
	// whole on the next read.
	reader := bufio.NewReaderSize(file, 64*1024)
	offset := start
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Chunk{}, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		text := strings.TrimRight(line, "\r\n")
		if filter != nil && !filter(text) {
			continue
		}
		lines = append(lines, text)
	}
	return Chunk{Lines: lines, Offset: offset}, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

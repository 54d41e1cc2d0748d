package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"camwatch/internal/session"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var titleCaser = cases.Title(language.English)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	return isTerminal(writer)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// humanize turns snake_case identifiers such as capture states into titles.
func humanize(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return "-"
	}
	return titleCaser.String(value)
}

// cameraHealth classifies a camera for the status summary line.
func cameraHealth(st session.Status) (statusKind, string) {
	switch {
	case st.LastErrorKind == "configuration":
		return statusError, "Configuration error: " + st.LastError
	case !st.ShouldRun:
		return statusInfo, "Stopped"
	case !st.Running:
		return statusWarn, "Wanted but not running"
	case st.Stable:
		return statusOK, fmt.Sprintf("Streaming at %.1f fps", st.EffectiveFPS)
	case st.LastErrorKind != "":
		return statusWarn, humanize(st.State) + " after " + humanize(st.LastErrorKind)
	default:
		return statusWarn, humanize(st.State)
	}
}

func cameraRows(cameras []session.Status, now time.Time) [][]string {
	rows := make([][]string, 0, len(cameras))
	for _, st := range cameras {
		rows = append(rows, []string{
			st.Name,
			humanize(st.Kind),
			humanize(st.State),
			fmt.Sprintf("%.1f/%.1f", st.EffectiveFPS, st.TargetFPS),
			fmt.Sprintf("%d", st.Accepted),
			fmt.Sprintf("%.1f%%", st.DropRate*100),
			fmt.Sprintf("%d", st.Restarts),
			frameAge(st.LastSuccess, now),
		})
	}
	return rows
}

func frameAge(last, now time.Time) string {
	if last.IsZero() {
		return "never"
	}
	age := now.Sub(last)
	if age < time.Second {
		return "now"
	}
	return age.Truncate(time.Second).String() + " ago"
}

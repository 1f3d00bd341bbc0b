package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"lightbox/internal/enrich"
	"lightbox/internal/photo"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func statusColor(status photo.Status) string {
	switch status {
	case photo.StatusEnriched:
		return ansiGreen
	case photo.StatusPartial, photo.StatusReview, photo.StatusDuplicate:
		return ansiYellow
	case photo.StatusFailed:
		return ansiRed
	case photo.StatusEnriching:
		return ansiBlue
	default:
		return ""
	}
}

func outcomeColor(outcome enrich.Outcome) string {
	switch outcome {
	case enrich.OutcomeSucceeded:
		return ansiGreen
	case enrich.OutcomeHalted, enrich.OutcomeCancelled:
		return ansiYellow
	default:
		return ansiRed
	}
}

func colorize(value, color string, enabled bool) string {
	if !enabled || color == "" {
		return value
	}
	return color + value + ansiReset
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytes))
}

func formatWhen(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(*t)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func tagNames(tags []photo.Tag) string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return dash(strings.Join(names, ", "))
}

func printKV(out io.Writer, key, value string) {
	fmt.Fprintf(out, "%-14s %s\n", key+":", value)
}

package ytdlp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/tubefetch/internal/models"
)

// classicProgress matches the default progress line, used when the template is ignored
var classicProgress = regexp.MustCompile(`\[download\]\s+(\d+\.?\d*%)\s+of\s+~?\s*(\S+)(?:\s+at\s+(\S+))?(?:\s+ETA\s+(\S+))?`)

// LineKind identifies what an output line carries
type LineKind int

const (
	LineOther LineKind = iota
	LineProgress
	LineFile
	LineError
)

// ParsedLine is the interpretation of one engine output line
type ParsedLine struct {
	Kind     LineKind
	Event    models.ProgressEvent
	FilePath string
	Message  string
}

// ParseLine interprets one line of engine output
func ParseLine(line string) ParsedLine {
	line = strings.TrimRight(line, "\r")

	if idx := strings.Index(line, progressMarker); idx >= 0 {
		if event, ok := parseTemplate(line[idx+len(progressMarker):]); ok {
			return ParsedLine{Kind: LineProgress, Event: event}
		}
		return ParsedLine{Kind: LineOther}
	}

	if idx := strings.Index(line, fileMarker); idx >= 0 {
		path := strings.TrimSpace(line[idx+len(fileMarker):])
		if path != "" && path != "NA" {
			return ParsedLine{Kind: LineFile, FilePath: path}
		}
		return ParsedLine{Kind: LineOther}
	}

	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "ERROR:") {
		return ParsedLine{Kind: LineError, Message: trimmed}
	}

	if m := classicProgress.FindStringSubmatch(line); m != nil {
		event := models.ProgressEvent{
			Status:  models.EventDownloading,
			Percent: m[1],
			Speed:   m[3],
			ETA:     m[4],
		}
		return ParsedLine{Kind: LineProgress, Event: event}
	}

	return ParsedLine{Kind: LineOther}
}

func parseTemplate(payload string) (models.ProgressEvent, bool) {
	fields := strings.SplitN(payload, fieldSeparator, 8)
	if len(fields) < 7 {
		return models.ProgressEvent{}, false
	}

	status := strings.TrimSpace(fields[0])
	if status != models.EventDownloading && status != models.EventFinished {
		return models.ProgressEvent{}, false
	}

	event := models.ProgressEvent{
		Status:             status,
		Percent:            naToEmpty(fields[1]),
		Speed:              naToEmpty(fields[2]),
		ETA:                naToEmpty(fields[3]),
		DownloadedBytes:    parseBytes(fields[4]),
		TotalBytes:         parseBytes(fields[5]),
		TotalBytesEstimate: parseBytes(fields[6]),
	}
	if len(fields) == 8 {
		event.Filename = naToEmpty(fields[7])
	}
	return event, true
}

func naToEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" || s == "None" {
		return ""
	}
	return s
}

// parseBytes accepts integers and the float form the engine uses for estimates
func parseBytes(s string) int64 {
	s = naToEmpty(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int64(f)
	}
	return 0
}

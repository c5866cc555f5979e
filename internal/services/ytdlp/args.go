package ytdlp

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/tubefetch/internal/models"
)

// Markers that prefix machine-readable lines in the engine's output
const (
	progressMarker = "[tubefetch:progress]"
	fileMarker     = "[tubefetch:file]"
	fieldSeparator = "|"
)

// progressTemplate renders one progress record per line; missing values print as NA
var progressTemplate = "download:" + progressMarker + strings.Join([]string{
	"%(progress.status)s",
	"%(progress._percent_str)s",
	"%(progress._speed_str)s",
	"%(progress._eta_str)s",
	"%(progress.downloaded_bytes)s",
	"%(progress.total_bytes)s",
	"%(progress.total_bytes_estimate)s",
	"%(progress.filename)s",
}, fieldSeparator)

// extractorArgs renders the youtube extractor arguments for the client profile
func extractorArgs(profile models.ClientProfile) string {
	var parts []string
	if len(profile.PlayerClients) > 0 {
		parts = append(parts, "player_client="+strings.Join(profile.PlayerClients, ","))
	}
	if len(profile.PlayerSkip) > 0 {
		parts = append(parts, "player_skip="+strings.Join(profile.PlayerSkip, ","))
	}
	if len(profile.Skip) > 0 {
		parts = append(parts, "skip="+strings.Join(profile.Skip, ","))
	}
	if len(parts) == 0 {
		return ""
	}
	return "youtube:" + strings.Join(parts, ";")
}

// identityArgs presents the client profile, credential and network route
func identityArgs(attempt models.ExtractionAttempt) []string {
	var args []string

	if ea := extractorArgs(attempt.Client); ea != "" {
		args = append(args, "--extractor-args", ea)
	}
	if attempt.Client.UserAgent != "" {
		args = append(args, "--user-agent", attempt.Client.UserAgent)
	}

	// Stable order keeps command lines reproducible in logs and tests
	keys := make([]string, 0, len(attempt.Client.Headers))
	for k := range attempt.Client.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--add-header", k+":"+attempt.Client.Headers[k])
	}

	if attempt.CookieFile != "" {
		args = append(args, "--cookies", attempt.CookieFile)
	}
	if attempt.Proxy != "" {
		args = append(args, "--proxy", attempt.Proxy)
	}

	return args
}

func tuningArgs(t models.TransferTuning) []string {
	var args []string
	if t.FragmentConcurrency > 0 {
		args = append(args, "--concurrent-fragments", strconv.Itoa(t.FragmentConcurrency))
	}
	if t.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(t.Retries))
	}
	if t.FragmentRetries > 0 {
		args = append(args, "--fragment-retries", strconv.Itoa(t.FragmentRetries))
	}
	if t.ChunkSize != "" {
		args = append(args, "--http-chunk-size", t.ChunkSize)
	}
	if t.BufferSize != "" {
		args = append(args, "--buffer-size", t.BufferSize)
	}
	if t.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(t.SocketTimeout))
	}
	return args
}

// InfoArgs builds the command line for a metadata-only lookup
func InfoArgs(attempt models.ExtractionAttempt, url string) []string {
	args := []string{
		"--dump-single-json",
		"--no-download",
		"--no-playlist",
		"--no-warnings",
	}
	if attempt.Tuning.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(attempt.Tuning.SocketTimeout))
	}
	args = append(args, identityArgs(attempt)...)
	return append(args, "--", url)
}

// DownloadArgs builds the command line for a download with line-oriented progress
func DownloadArgs(attempt models.ExtractionAttempt, url string) []string {
	args := []string{
		"--newline",
		"--progress",
		"--no-simulate",
		"--no-playlist",
		"--progress-template", progressTemplate,
		"--print", "after_move:" + fileMarker + "%(filepath)s",
	}
	args = append(args, identityArgs(attempt)...)
	args = append(args, tuningArgs(attempt.Tuning)...)

	if attempt.Format != "" {
		args = append(args, "--format", attempt.Format)
	}
	if attempt.FormatSort != "" {
		args = append(args, "--format-sort", attempt.FormatSort)
	}
	if attempt.MergeFormat != "" {
		args = append(args, "--merge-output-format", attempt.MergeFormat)
	}
	if attempt.OutputTemplate != "" {
		args = append(args, "--output", attempt.OutputTemplate)
	}

	return append(args, "--", url)
}

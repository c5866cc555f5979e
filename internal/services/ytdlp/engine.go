package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/models"
)

const maxLineSize = 1024 * 1024

// Engine drives the yt-dlp executable. Each call starts a fresh process configured
// entirely from the attempt, so attempts never share state.
type Engine struct {
	binary string
	logger arbor.ILogger
}

// NewEngine creates an engine for binary (a path or a name resolved from PATH)
func NewEngine(binary string, logger arbor.ILogger) *Engine {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Engine{binary: binary, logger: logger}
}

// Available reports whether the binary can be found
func (e *Engine) Available() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// ExtractInfo returns metadata for url without downloading media
func (e *Engine) ExtractInfo(ctx context.Context, attempt models.ExtractionAttempt, url string) (*models.VideoMetadata, error) {
	args := InfoArgs(attempt, url)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug().
		Str("strategy", attempt.Name).
		Strs("args", redact(args)).
		Msg("Running metadata lookup")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("metadata lookup interrupted: %w", ctxErr)
		}
		return nil, engineError(lastErrorLine(stderr.String()), err)
	}

	var metadata models.VideoMetadata
	if err := json.Unmarshal(stdout.Bytes(), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &metadata, nil
}

// Download fetches url, emitting progress records on events. Sends block until the
// consumer reads or ctx ends; events is never closed here.
func (e *Engine) Download(ctx context.Context, attempt models.ExtractionAttempt, url string, events chan<- models.ProgressEvent) (*models.DownloadResult, error) {
	args := DownloadArgs(attempt, url)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine output: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	e.logger.Debug().
		Str("strategy", attempt.Name).
		Strs("args", redact(args)).
		Msg("Starting download")

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", e.binary, err)
	}

	var filePath, lastError string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		parsed := ParseLine(scanner.Text())
		switch parsed.Kind {
		case LineProgress:
			select {
			case events <- parsed.Event:
			case <-ctx.Done():
			}
		case LineFile:
			filePath = parsed.FilePath
		case LineError:
			lastError = parsed.Message
			e.logger.Debug().Str("strategy", attempt.Name).Str("line", parsed.Message).Msg("Engine reported error")
		}
	}
	if err := scanner.Err(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to read engine output")
		// Keep the pipe flowing so the engine never blocks on write before Wait
		io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("download interrupted: %w", ctxErr)
		}
		return nil, engineError(lastError, err)
	}

	if filePath == "" {
		filePath = findOutput(attempt.OutputTemplate)
	}
	if filePath == "" {
		return nil, errors.New("download finished but no output file was reported")
	}

	return &models.DownloadResult{
		FilePath: filePath,
		Filename: filepath.Base(filePath),
	}, nil
}

// engineError keeps the engine's own message so classification can inspect it
func engineError(message string, exitErr error) error {
	if message != "" {
		return fmt.Errorf("%s: %w", message, exitErr)
	}
	return fmt.Errorf("yt-dlp failed: %w", exitErr)
}

func lastErrorLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); strings.HasPrefix(line, "ERROR:") {
			return line
		}
	}
	return strings.TrimSpace(output)
}

// findOutput locates the merged artifact for an "<dir>/<name>.%(ext)s" template
func findOutput(template string) string {
	if template == "" || !strings.HasSuffix(template, ".%(ext)s") {
		return ""
	}
	prefix := strings.TrimSuffix(template, "%(ext)s")

	matches, err := filepath.Glob(prefix + "*")
	if err != nil {
		return ""
	}

	var best string
	var bestSize int64
	for _, m := range matches {
		// Skip per-stream intermediates such as name.f137.mp4 and partial files
		rest := strings.TrimPrefix(m, prefix)
		if strings.Contains(rest, ".") || strings.HasSuffix(m, ".part") {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() >= bestSize {
			best, bestSize = m, info.Size()
		}
	}
	return best
}

// redact hides the cookie file path and proxy credentials in logged command lines
func redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--cookies" || out[i] == "--proxy" {
			out[i+1] = "[redacted]"
		}
	}
	return out
}

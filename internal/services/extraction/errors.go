package extraction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies extraction failures
type ErrorKind string

const (
	KindBotDetected      ErrorKind = "bot_detected"
	KindNetwork          ErrorKind = "network"
	KindValidation       ErrorKind = "validation"
	KindExtractionFailed ErrorKind = "extraction_failed"
)

// ErrBotDetected is matched by errors.Is for any bot-detection failure
var ErrBotDetected = errors.New("upstream suspects automated access")

// BlockedMessage is shown when every strategy was rejected as automated
const BlockedMessage = "The video site blocked this request as automated traffic. " +
	"Wait a few minutes and retry, upload fresh cookies exported from a signed-in browser, " +
	"or try again from a different network."

// Error is a classified extraction failure
type Error struct {
	Kind     ErrorKind
	Strategy string   // Attempt that produced the failure
	Attempts []string // Every attempt tried, in order
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Strategy, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrBotDetected) match classified failures
func (e *Error) Is(target error) bool {
	return target == ErrBotDetected && e.Kind == KindBotDetected
}

// UserMessage returns the text shown to API clients
func (e *Error) UserMessage() string {
	if e.Kind == KindBotDetected {
		return BlockedMessage
	}
	return cleanMessage(e.Err)
}

// cleanMessage strips the engine's "ERROR:" prefix and extractor tag
func cleanMessage(err error) string {
	if err == nil {
		return "download failed"
	}
	msg := strings.TrimSpace(err.Error())
	msg = strings.TrimPrefix(msg, "ERROR:")
	msg = strings.TrimSpace(msg)
	if strings.HasPrefix(msg, "[") {
		if end := strings.Index(msg, "]"); end > 0 {
			msg = strings.TrimSpace(msg[end+1:])
		}
	}
	if msg == "" {
		return "download failed"
	}
	return msg
}

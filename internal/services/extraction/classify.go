package extraction

import (
	"context"
	"errors"
	"strings"

	"github.com/ternarybob/tubefetch/internal/models"
)

var botPhrases = []string{
	"confirm you're not a bot",
	"confirm you’re not a bot",
	"confirm that you're not a bot",
	"sign in to confirm",
	"use --cookies",
	"--cookies-from-browser",
	"cookies for the authentication",
	"http error 429",
	"too many requests",
}

var networkPhrases = []string{
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure in name resolution",
	"no route to host",
	"network is unreachable",
	"unable to download webpage",
	"remote end closed connection",
	"eof occurred",
}

// Classify inspects an engine failure. Only KindBotDetected triggers escalation.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return KindValidation
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range botPhrases {
		if strings.Contains(msg, phrase) {
			return KindBotDetected
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	for _, phrase := range networkPhrases {
		if strings.Contains(msg, phrase) {
			return KindNetwork
		}
	}

	return KindExtractionFailed
}

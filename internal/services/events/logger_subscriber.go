package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs lifecycle events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		var downloadID, cookieID, status string
		if payload, ok := event.Payload.(map[string]interface{}); ok {
			if id, ok := payload["download_id"].(string); ok {
				downloadID = id
			}
			if id, ok := payload["cookie_id"].(string); ok {
				cookieID = id
			}
			if s, ok := payload["status"].(string); ok {
				status = s
			}
		}

		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		if downloadID != "" {
			logEvent = logEvent.Str("download_id", downloadID)
		}
		if cookieID != "" {
			logEvent = logEvent.Str("cookie_id", cookieID)
		}
		if status != "" {
			logEvent = logEvent.Str("status", status)
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// SubscribeLoggerToLifecycleEvents subscribes the logger to every event type except per-tick progress
func SubscribeLoggerToLifecycleEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventDownloadSubmitted,
		interfaces.EventDownloadCompleted,
		interfaces.EventDownloadFailed,
		interfaces.EventCookieUploaded,
		interfaces.EventCookieReleased,
		interfaces.EventCleanupCompleted,
	}

	for _, eventType := range eventTypes {
		if _, err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Debug().
		Int("event_type_count", len(eventTypes)).
		Msg("Logger subscribed to lifecycle events")

	return nil
}

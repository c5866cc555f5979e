package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventDownloadSubmitted EventType = "download_submitted"
	EventDownloadProgress  EventType = "download_progress"
	EventDownloadCompleted EventType = "download_completed"
	EventDownloadFailed    EventType = "download_failed"
	EventCookieUploaded    EventType = "cookie_uploaded"
	EventCookieReleased    EventType = "cookie_released"
	EventCleanupCompleted  EventType = "cleanup_completed"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe registers a handler and returns a token for Unsubscribe
	Subscribe(eventType EventType, handler EventHandler) (int, error)

	// Unsubscribe removes the handler registered under token
	Unsubscribe(eventType EventType, token int) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}

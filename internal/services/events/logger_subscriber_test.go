package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/interfaces"
)

func TestNewLoggerSubscriber(t *testing.T) {
	subscriber := NewLoggerSubscriber(arbor.NewLogger())

	err := subscriber(context.Background(), interfaces.Event{
		Type: interfaces.EventDownloadCompleted,
		Payload: map[string]interface{}{
			"download_id": "job-123",
			"status":      "completed",
		},
	})
	assert.NoError(t, err)

	err = subscriber(context.Background(), interfaces.Event{Type: interfaces.EventCleanupCompleted})
	assert.NoError(t, err)
}

func TestSubscribeLoggerToLifecycleEvents(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	require.NoError(t, SubscribeLoggerToLifecycleEvents(service, arbor.NewLogger()))

	assert.Len(t, service.handlers(interfaces.EventDownloadFailed), 1)
	assert.Empty(t, service.handlers(interfaces.EventDownloadProgress), "progress is too chatty to log")
}

func TestService_PublishSyncPreservesOrder(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var received []int
	_, err := service.Subscribe(interfaces.EventDownloadProgress, func(ctx context.Context, event interfaces.Event) error {
		received = append(received, event.Payload.(int))
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventDownloadProgress, Payload: i}))
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, received)
}

func TestService_PublishSyncReportsFailures(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	_, err := service.Subscribe(interfaces.EventCookieUploaded, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("boom")
	})
	require.NoError(t, err)

	err = service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventCookieUploaded})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestService_PublishAsync(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	_, err := service.Subscribe(interfaces.EventDownloadSubmitted, func(ctx context.Context, event interfaces.Event) error {
		wg.Done()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventDownloadSubmitted}))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler was not invoked")
	}
}

func TestService_Unsubscribe(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	calls := 0
	token, err := service.Subscribe(interfaces.EventCookieReleased, func(ctx context.Context, event interfaces.Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, service.Unsubscribe(interfaces.EventCookieReleased, token))
	require.NoError(t, service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventCookieReleased}))

	assert.Equal(t, 0, calls)
	assert.Error(t, service.Unsubscribe(interfaces.EventCookieReleased, token))
}

func TestService_SubscribeNilHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	_, err := service.Subscribe(interfaces.EventCookieReleased, nil)
	assert.Error(t, err)
}

package interfaces

import (
	"context"

	"github.com/ternarybob/tubefetch/internal/models"
)

// Extractor is the metadata-extraction/download engine.
// Implementations are black boxes configured entirely by the attempt.
type Extractor interface {
	// ExtractInfo returns metadata for url without downloading media
	ExtractInfo(ctx context.Context, attempt models.ExtractionAttempt, url string) (*models.VideoMetadata, error)

	// Download fetches url, emitting raw progress records on events until it returns.
	// The implementation never closes events; the caller owns the channel.
	Download(ctx context.Context, attempt models.ExtractionAttempt, url string, events chan<- models.ProgressEvent) (*models.DownloadResult, error)
}

// BrowserWarmer loads a page in a real browser so upstream session state looks organic
type BrowserWarmer interface {
	// WarmUp visits pageURL, injecting cookies from cookieFile when it is non-empty
	WarmUp(ctx context.Context, pageURL string, cookieFile string) error
}

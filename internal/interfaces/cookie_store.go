package interfaces

import (
	"io"
	"time"
)

// CookieStore holds uploaded credential files for a bounded time
type CookieStore interface {
	// Upload validates and persists data, returning a new handle
	Upload(data []byte, declaredSize int64) (string, error)

	// UploadReader reads at most the size limit from r and uploads it
	UploadReader(r io.Reader, declaredSize int64) (string, error)

	// Resolve returns the file path for id; absence is not an error
	Resolve(id string) (string, bool)

	// Release removes the artifact and its file; unknown ids are a no-op
	Release(id string)

	// Sweep removes artifacts older than maxAge and returns how many were removed
	Sweep(maxAge time.Duration) int
}

package common

import (
	"github.com/google/uuid"
)

// NewDownloadID generates a unique download job ID
// Format: <uuid>
func NewDownloadID() string {
	return uuid.New().String()
}

// NewCookieID generates a unique credential artifact ID with the "cookie_" prefix
// Format: cookie_<uuid>
func NewCookieID() string {
	return "cookie_" + uuid.New().String()
}

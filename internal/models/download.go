// -----------------------------------------------------------------------
// Download Job - Immutable request captured at submission time
// -----------------------------------------------------------------------

package models

import "time"

// DownloadJob is the unit of background work created by Submit.
// It is never modified after creation; runtime state lives in the ProgressSnapshot.
type DownloadJob struct {
	ID        string    `json:"id"`                  // Unique job ID (UUID), never reused
	URL       string    `json:"url"`                 // Source page URL
	Quality   string    `json:"quality"`             // "best" or a height such as "720"
	CookieID  string    `json:"cookie_id,omitempty"` // Optional credential artifact handle
	CreatedAt time.Time `json:"created_at"`          // Submission timestamp
}

// HasCookie reports whether the job was submitted with a credential handle
func (j *DownloadJob) HasCookie() bool {
	return j.CookieID != ""
}

// DownloadResult describes the artifact produced by a successful attempt
type DownloadResult struct {
	FilePath string `json:"-"`        // Absolute path of the final artifact
	Filename string `json:"filename"` // Display name, the basename of FilePath
	Title    string `json:"title,omitempty"`
}

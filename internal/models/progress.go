// -----------------------------------------------------------------------
// Progress - Per-job status snapshots and raw engine events
// -----------------------------------------------------------------------

package models

import "time"

// DownloadStatus is the client-facing coarse status
type DownloadStatus string

const (
	StatusStarting    DownloadStatus = "starting"
	StatusWarmingUp   DownloadStatus = "warming_up"
	StatusDownloading DownloadStatus = "downloading"
	StatusProcessing  DownloadStatus = "processing"
	StatusCompleted   DownloadStatus = "completed"
	StatusError       DownloadStatus = "error"
	StatusNotFound    DownloadStatus = "not_found" // Only rendered by the API, never stored
)

// IsTerminal reports whether no further transitions are allowed
func (s DownloadStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Phase is the inferred download phase.
// It only advances in the order below, or jumps to PhaseError.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseWarmingUp    Phase = "warming_up"
	PhaseVideo        Phase = "video"
	PhaseAudio        Phase = "audio"
	PhaseMerging      Phase = "merging"
	PhaseDone         Phase = "done"
	PhaseError        Phase = "error"
)

var phaseRank = map[Phase]int{
	PhaseInitializing: 0,
	PhaseWarmingUp:    1,
	PhaseVideo:        2,
	PhaseAudio:        3,
	PhaseMerging:      4,
	PhaseDone:         5,
}

// Rank returns the position of the phase in the forward order; PhaseError ranks above everything
func (p Phase) Rank() int {
	if p == PhaseError {
		return len(phaseRank)
	}
	return phaseRank[p]
}

// ProgressSnapshot is the latest known state of one job.
// Snapshots are values: the tracker replaces them whole, readers get copies.
type ProgressSnapshot struct {
	DownloadID  string         `json:"download_id"`
	Status      DownloadStatus `json:"status"`
	Phase       Phase          `json:"phase"`
	Percent     string         `json:"percent"`      // Cleaned display string, e.g. "42.0%"
	RawPercent  float64        `json:"raw_percent"`  // Parsed numeric percentage
	LastPercent float64        `json:"last_percent"` // Last percentage seen, drives phase inference
	Speed       string         `json:"speed"`
	ETA         string         `json:"eta"`
	Downloaded  int64          `json:"downloaded"`
	Total       int64          `json:"total"`
	Strategy    string         `json:"strategy,omitempty"` // Attempt currently in flight
	Filename    string         `json:"filename,omitempty"` // Display name once completed
	FilePath    string         `json:"-"`                  // Never serialised
	ErrorKind   string         `json:"error_kind,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Progress event statuses emitted by the engine
const (
	EventDownloading = "downloading"
	EventFinished    = "finished"
)

// ProgressEvent is one raw progress record from the extraction engine.
// Text fields may contain terminal color codes.
type ProgressEvent struct {
	Status             string `json:"status"`                         // "downloading" or "finished"
	Percent            string `json:"percent"`                        // e.g. " 42.0%"
	Speed              string `json:"speed"`                          // e.g. "1.50MiB/s"
	ETA                string `json:"eta"`                            // e.g. "00:12"
	DownloadedBytes    int64  `json:"downloaded_bytes"`               // 0 = unknown
	TotalBytes         int64  `json:"total_bytes"`                    // 0 = unknown
	TotalBytesEstimate int64  `json:"total_bytes_estimate,omitempty"` // 0 = unknown
	Filename           string `json:"filename,omitempty"`             // Stream file being written
}

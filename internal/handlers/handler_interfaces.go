package handlers

import (
	"context"

	"github.com/ternarybob/tubefetch/internal/models"
	"github.com/ternarybob/tubefetch/internal/services/reaper"
)

// DownloadSubmitter defines the job orchestrator operations used by the API.
type DownloadSubmitter interface {
	Submit(req models.DownloadRequest) (string, error)
	VideoInfo(ctx context.Context, req models.VideoInfoRequest) (*models.VideoInfo, error)
}

// ProgressQuerier defines read access to job progress snapshots.
type ProgressQuerier interface {
	Query(id string) (models.ProgressSnapshot, bool)
}

// EngineChecker reports whether the extraction engine is installed.
type EngineChecker interface {
	Available() bool
}

// SweepReporter reports the state of the cleanup schedules.
type SweepReporter interface {
	Statuses() []reaper.JobStatus
}

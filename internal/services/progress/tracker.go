package progress

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/models"
)

// Phase inference thresholds: a drop from above highWater to below lowWater
// while downloading video means the engine moved on to the audio stream.
const (
	highWater = 90.0
	lowWater  = 50.0
)

// Display strings used once streams are being merged
const (
	mergingSpeed = "Merging files..."
	mergingETA   = "Almost done!"
)

// ansiPattern matches CSI sequences and two-byte escape sequences
var ansiPattern = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// StripANSI removes terminal color and cursor sequences
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// Listener receives every snapshot the tracker stores
type Listener func(snapshot models.ProgressSnapshot)

// Tracker holds the latest snapshot per job.
// Each update builds a new snapshot and replaces the old one in a single assignment under the lock,
// so readers never observe a partially updated record.
type Tracker struct {
	mu        sync.RWMutex
	snapshots map[string]models.ProgressSnapshot
	listener  Listener
	logger    arbor.ILogger
	now       func() time.Time
}

// NewTracker creates an empty tracker
func NewTracker(logger arbor.ILogger) *Tracker {
	return &Tracker{
		snapshots: make(map[string]models.ProgressSnapshot),
		logger:    logger,
		now:       time.Now,
	}
}

// SetListener registers the function notified after each stored update
func (t *Tracker) SetListener(listener Listener) {
	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()
}

// Start inserts the initial snapshot for id
func (t *Tracker) Start(id string) models.ProgressSnapshot {
	now := t.now()
	snapshot := models.ProgressSnapshot{
		DownloadID: id,
		Status:     models.StatusStarting,
		Phase:      models.PhaseInitializing,
		Percent:    "0%",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	t.mu.Lock()
	t.snapshots[id] = snapshot
	listener := t.listener
	t.mu.Unlock()

	notify(listener, snapshot)
	return snapshot
}

// BeginAttempt records the strategy now in flight and resets percentage tracking for it
func (t *Tracker) BeginAttempt(id, strategy string) {
	t.update(id, func(s *models.ProgressSnapshot) bool {
		s.Strategy = strategy
		s.LastPercent = 0
		s.RawPercent = 0
		s.Percent = "0%"
		if s.Phase.Rank() < models.PhaseVideo.Rank() {
			s.Phase = models.PhaseVideo
		}
		s.Status = statusFor(s.Phase)
		return true
	})
}

// WarmingUp marks id as running the browser warm-up for strategy
func (t *Tracker) WarmingUp(id, strategy string) {
	t.update(id, func(s *models.ProgressSnapshot) bool {
		s.Strategy = strategy
		s.Status = models.StatusWarmingUp
		if s.Phase.Rank() < models.PhaseWarmingUp.Rank() {
			s.Phase = models.PhaseWarmingUp
		}
		return true
	})
}

// Record folds one raw engine event into the snapshot for id
func (t *Tracker) Record(id string, event models.ProgressEvent) {
	t.update(id, func(s *models.ProgressSnapshot) bool {
		switch event.Status {
		case models.EventDownloading:
			applyDownloading(s, event)
		case models.EventFinished:
			applyFinished(s)
		default:
			return false
		}
		return true
	})
}

func applyDownloading(s *models.ProgressSnapshot, event models.ProgressEvent) {
	display := strings.TrimSpace(StripANSI(event.Percent))
	value := ParsePercent(display)

	if s.Phase.Rank() < models.PhaseVideo.Rank() {
		s.Phase = models.PhaseVideo
	}
	if s.Phase == models.PhaseVideo && s.LastPercent > highWater && value < lowWater {
		s.Phase = models.PhaseAudio
	}

	s.Percent = display
	s.RawPercent = value
	s.LastPercent = value
	s.Speed = strings.TrimSpace(StripANSI(event.Speed))
	s.ETA = strings.TrimSpace(StripANSI(event.ETA))
	s.Downloaded = event.DownloadedBytes
	s.Total = event.TotalBytes
	if s.Total == 0 {
		s.Total = event.TotalBytesEstimate
	}
	s.Status = statusFor(s.Phase)
}

// applyFinished handles the end of one stream: video moves to audio, audio moves to merging
func applyFinished(s *models.ProgressSnapshot) {
	switch {
	case s.Phase.Rank() <= models.PhaseVideo.Rank():
		s.Phase = models.PhaseAudio
	case s.Phase == models.PhaseAudio:
		s.Phase = models.PhaseMerging
	}

	s.Percent = "100%"
	s.RawPercent = 100
	if s.Phase == models.PhaseMerging {
		s.Speed = mergingSpeed
		s.ETA = mergingETA
	}
	s.Status = statusFor(s.Phase)
}

// Complete moves id to completed with the artifact location
func (t *Tracker) Complete(id string, result models.DownloadResult) {
	t.update(id, func(s *models.ProgressSnapshot) bool {
		s.Status = models.StatusCompleted
		s.Phase = models.PhaseDone
		s.Percent = "100%"
		s.RawPercent = 100
		s.ETA = ""
		s.Speed = ""
		s.FilePath = result.FilePath
		s.Filename = result.Filename
		return true
	})
}

// Fail moves id to error with a user-facing message
func (t *Tracker) Fail(id, kind, message string) {
	t.update(id, func(s *models.ProgressSnapshot) bool {
		s.Status = models.StatusError
		s.Phase = models.PhaseError
		s.ErrorKind = kind
		s.Error = message
		return true
	})
}

// Query returns a copy of the latest snapshot for id
func (t *Tracker) Query(id string) (models.ProgressSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot, ok := t.snapshots[id]
	return snapshot, ok
}

// Len returns the number of tracked jobs
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.snapshots)
}

// update applies fn to a copy of the current snapshot and stores the copy.
// Terminal snapshots and unknown ids are left untouched.
func (t *Tracker) update(id string, fn func(s *models.ProgressSnapshot) bool) {
	t.mu.Lock()
	current, ok := t.snapshots[id]
	if !ok {
		t.mu.Unlock()
		t.logger.Debug().Str("download_id", id).Msg("Progress update for unknown download ignored")
		return
	}
	if current.Status.IsTerminal() {
		t.mu.Unlock()
		return
	}

	next := current
	if !fn(&next) {
		t.mu.Unlock()
		return
	}
	next.UpdatedAt = t.now()
	t.snapshots[id] = next
	listener := t.listener
	t.mu.Unlock()

	notify(listener, next)
}

func notify(listener Listener, snapshot models.ProgressSnapshot) {
	if listener != nil {
		listener(snapshot)
	}
}

func statusFor(phase models.Phase) models.DownloadStatus {
	switch phase {
	case models.PhaseInitializing:
		return models.StatusStarting
	case models.PhaseWarmingUp:
		return models.StatusWarmingUp
	case models.PhaseMerging:
		return models.StatusProcessing
	case models.PhaseDone:
		return models.StatusCompleted
	case models.PhaseError:
		return models.StatusError
	default:
		return models.StatusDownloading
	}
}

// ParsePercent parses a display percentage such as "42.5%"; anything unparsable is 0
func ParsePercent(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

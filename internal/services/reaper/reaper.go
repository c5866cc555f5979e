package reaper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/common"
	"github.com/ternarybob/tubefetch/internal/interfaces"
)

// Job names
const (
	JobOutputs = "outputs"
	JobCookies = "cookies"
)

// Config holds reaper schedules and retention windows
type Config struct {
	OutputDir       string
	OutputSchedule  string
	OutputRetention time.Duration
	CookieSchedule  string
	CookieTTL       time.Duration
	RunOnStart      bool
}

// JobStatus reports the last run of one sweep
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	LastRemoved int        `json:"last_removed"`
	LastError   string     `json:"last_error,omitempty"`
}

type jobEntry struct {
	name        string
	schedule    string
	handler     func() int
	cronID      cron.EntryID
	lastRun     *time.Time
	lastRemoved int
	lastError   string
}

// Reaper deletes expired artifacts on a schedule.
//
// Output files are judged by modification time alone. A job that runs longer than the retention
// window can lose an intermediate stream file that stopped being written (for example a finished
// video stream waiting for its audio) to a sweep; files still being written keep a fresh mtime.
type Reaper struct {
	config  Config
	cookies interfaces.CookieStore
	events  interfaces.EventService
	cron    *cron.Cron
	logger  arbor.ILogger

	jobMu    sync.Mutex // Protects jobs
	globalMu sync.Mutex // Serialises sweeps
	jobs     map[string]*jobEntry
	running  bool
	now      func() time.Time
}

// NewReaper creates a reaper. cookies and events may be nil.
func NewReaper(config Config, cookies interfaces.CookieStore, events interfaces.EventService, logger arbor.ILogger) *Reaper {
	return &Reaper{
		config:  config,
		cookies: cookies,
		events:  events,
		cron:    cron.New(),
		logger:  logger,
		jobs:    make(map[string]*jobEntry),
		now:     time.Now,
	}
}

// Start registers both sweeps and starts the scheduler
func (r *Reaper) Start() error {
	r.jobMu.Lock()
	if r.running {
		r.jobMu.Unlock()
		return fmt.Errorf("reaper already running")
	}
	r.jobMu.Unlock()

	if err := r.registerJob(JobOutputs, r.config.OutputSchedule, r.SweepOutputs); err != nil {
		return err
	}
	if r.cookies != nil {
		if err := r.registerJob(JobCookies, r.config.CookieSchedule, r.SweepCookies); err != nil {
			return err
		}
	}

	r.cron.Start()

	r.jobMu.Lock()
	r.running = true
	r.jobMu.Unlock()

	r.logger.Info().
		Str("output_schedule", r.config.OutputSchedule).
		Str("output_retention", r.config.OutputRetention.String()).
		Str("cookie_schedule", r.config.CookieSchedule).
		Str("cookie_ttl", r.config.CookieTTL.String()).
		Msg("Reaper started")

	if r.config.RunOnStart {
		common.SafeGo(r.logger, "reaper-startup-sweep", func() {
			r.runJob(JobOutputs)
			r.runJob(JobCookies)
		})
	}

	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish
func (r *Reaper) Stop() {
	r.jobMu.Lock()
	if !r.running {
		r.jobMu.Unlock()
		return
	}
	r.running = false
	r.jobMu.Unlock()

	<-r.cron.Stop().Done()
	r.logger.Info().Msg("Reaper stopped")
}

// IsRunning reports whether the scheduler is active
func (r *Reaper) IsRunning() bool {
	r.jobMu.Lock()
	defer r.jobMu.Unlock()
	return r.running
}

func (r *Reaper) registerJob(name, schedule string, handler func() int) error {
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule for %s sweep: %w", name, err)
	}

	r.jobMu.Lock()
	defer r.jobMu.Unlock()

	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("sweep %s already registered", name)
	}

	cronID, err := r.cron.AddFunc(schedule, func() {
		r.runJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add %s sweep to cron: %w", name, err)
	}

	r.jobs[name] = &jobEntry{
		name:     name,
		schedule: schedule,
		handler:  handler,
		cronID:   cronID,
	}

	r.logger.Debug().
		Str("sweep", name).
		Str("schedule", schedule).
		Msg("Sweep registered")

	return nil
}

// runJob executes one sweep. A panic is recorded on the entry and never stops later runs.
func (r *Reaper) runJob(name string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("sweep", name).
				Str("panic", fmt.Sprintf("%v", rec)).
				Msg("PANIC RECOVERED in sweep")

			r.jobMu.Lock()
			if entry, exists := r.jobs[name]; exists {
				completed := r.now()
				entry.lastRun = &completed
				entry.lastError = fmt.Sprintf("panic: %v", rec)
			}
			r.jobMu.Unlock()
		}
	}()

	r.globalMu.Lock()
	defer r.globalMu.Unlock()

	r.jobMu.Lock()
	entry, exists := r.jobs[name]
	if !exists {
		r.jobMu.Unlock()
		return
	}
	handler := entry.handler
	r.jobMu.Unlock()

	start := time.Now()
	removed := handler()

	completed := r.now()
	r.jobMu.Lock()
	entry.lastRun = &completed
	entry.lastRemoved = removed
	entry.lastError = ""
	r.jobMu.Unlock()

	r.logger.Debug().
		Str("sweep", name).
		Int("removed", removed).
		Str("duration", time.Since(start).String()).
		Msg("Sweep completed")

	if removed > 0 && r.events != nil {
		event := interfaces.Event{
			Type: interfaces.EventCleanupCompleted,
			Payload: map[string]interface{}{
				"sweep":   name,
				"removed": removed,
			},
		}
		if err := r.events.Publish(context.Background(), event); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to publish cleanup event")
		}
	}
}

// SweepOutputs deletes regular files in the output directory older than the retention window.
// Individual failures are logged and skipped.
func (r *Reaper) SweepOutputs() int {
	entries, err := os.ReadDir(r.config.OutputDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn().Err(err).Str("dir", r.config.OutputDir).Msg("Failed to list output directory")
		}
		return 0
	}

	now := r.now()
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= r.config.OutputRetention {
			continue
		}

		path := filepath.Join(r.config.OutputDir, e.Name())
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				r.logger.Warn().Err(err).Str("file", e.Name()).Msg("Failed to remove expired output")
			}
			continue
		}
		removed++
		r.logger.Debug().Str("file", e.Name()).Msg("Removed expired output")
	}

	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("Output sweep removed expired files")
	}
	return removed
}

// SweepCookies releases credentials older than the cookie TTL
func (r *Reaper) SweepCookies() int {
	if r.cookies == nil {
		return 0
	}
	removed := r.cookies.Sweep(r.config.CookieTTL)
	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("Cookie sweep released expired credentials")
	}
	return removed
}

// Statuses returns the state of each registered sweep
func (r *Reaper) Statuses() []JobStatus {
	r.jobMu.Lock()
	defer r.jobMu.Unlock()

	statuses := make([]JobStatus, 0, len(r.jobs))
	for _, name := range []string{JobOutputs, JobCookies} {
		entry, ok := r.jobs[name]
		if !ok {
			continue
		}
		status := JobStatus{
			Name:        entry.name,
			Schedule:    entry.schedule,
			LastRun:     entry.lastRun,
			LastRemoved: entry.lastRemoved,
			LastError:   entry.lastError,
		}
		if cronEntry := r.cron.Entry(entry.cronID); cronEntry.Valid() && !cronEntry.Next.IsZero() {
			next := cronEntry.Next
			status.NextRun = &next
		}
		statuses = append(statuses, status)
	}
	return statuses
}

package downloads

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/common"
	"github.com/ternarybob/tubefetch/internal/interfaces"
	"github.com/ternarybob/tubefetch/internal/models"
	"github.com/ternarybob/tubefetch/internal/services/extraction"
	"github.com/ternarybob/tubefetch/internal/services/progress"
)

// ErrShuttingDown is returned by Submit after Close
var ErrShuttingDown = errors.New("download service is shutting down")

// Config holds the orchestrator settings derived from the application config
type Config struct {
	OutputDir      string
	AttemptTimeout time.Duration
	WarmUpTimeout  time.Duration
	EventBuffer    int
	Proxy          string
	Profile        models.ClientProfile
	Tuning         models.TransferTuning
	BrowserEnabled bool
}

// Service accepts download jobs and runs each one in its own goroutine.
// Jobs are never evicted from the table; a long-running process accumulates one entry per submission.
type Service struct {
	config    Config
	extractor interfaces.Extractor
	cookies   interfaces.CookieStore
	tracker   *progress.Tracker
	chain     *extraction.Chain
	events    interfaces.EventService
	logger    arbor.ILogger

	mu   sync.RWMutex
	jobs map[string]*models.DownloadJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewService creates the orchestrator. warmer and events may be nil.
func NewService(
	config Config,
	extractor interfaces.Extractor,
	cookies interfaces.CookieStore,
	tracker *progress.Tracker,
	warmer interfaces.BrowserWarmer,
	events interfaces.EventService,
	logger arbor.ILogger,
) (*Service, error) {
	if config.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	if warmer == nil {
		config.BrowserEnabled = false
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		config:    config,
		extractor: extractor,
		cookies:   cookies,
		tracker:   tracker,
		chain:     extraction.NewChain(warmer, config.WarmUpTimeout, config.AttemptTimeout, logger),
		events:    events,
		logger:    logger,
		jobs:      make(map[string]*models.DownloadJob),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}, nil
}

// Submit validates req, records the job and starts its worker. It performs no network I/O.
func (s *Service) Submit(req models.DownloadRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	quality, err := extraction.ParseQuality(req.Quality)
	if err != nil {
		return "", err
	}
	if s.ctx.Err() != nil {
		return "", ErrShuttingDown
	}

	job := &models.DownloadJob{
		ID:        common.NewDownloadID(),
		URL:       req.URL,
		Quality:   quality,
		CookieID:  req.CookieID,
		CreatedAt: s.now(),
	}

	// The snapshot exists before Submit returns so an immediate poll never sees not_found
	s.tracker.Start(job.ID)

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.logger.Info().
		Str("download_id", job.ID).
		Str("url", job.URL).
		Str("quality", job.Quality).
		Bool("has_cookie", job.HasCookie()).
		Msg("Download submitted")

	s.publish(interfaces.EventDownloadSubmitted, map[string]interface{}{
		"download_id": job.ID,
		"url":         job.URL,
		"quality":     job.Quality,
	})

	s.wg.Add(1)
	common.SafeGo(s.logger, "download-"+job.ID, func() {
		defer s.wg.Done()
		s.run(job)
	})

	return job.ID, nil
}

// Job returns the immutable job record for id
func (s *Service) Job(id string) (*models.DownloadJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Len returns the number of submitted jobs
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Wait blocks until every started worker has returned
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight attempts and waits for workers to record their outcome
func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// run executes one job to completion or failure
func (s *Service) run(job *models.DownloadJob) {
	jobLogger := s.logger.WithCorrelationId(job.ID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.tracker.Fail(job.ID, string(extraction.KindExtractionFailed), "internal error while downloading")
			panic(r)
		}
	}()

	if job.HasCookie() {
		defer s.releaseCookie(job.CookieID)
	}

	cookieFile := s.resolveCookie(job.CookieID, jobLogger)

	attempts := extraction.BuildChain(extraction.ChainOptions{
		Quality:        job.Quality,
		CookieFile:     cookieFile,
		OutputTemplate: filepath.Join(s.config.OutputDir, job.ID+".%(ext)s"),
		Proxy:          s.config.Proxy,
		Profile:        s.config.Profile,
		Tuning:         s.config.Tuning,
		BrowserEnabled: s.config.BrowserEnabled,
	})

	var result *models.DownloadResult
	op := func(ctx context.Context, attempt models.ExtractionAttempt) error {
		r, err := s.download(ctx, job, attempt)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	hooks := extraction.Hooks{
		OnWarmUp: func(attempt models.ExtractionAttempt) {
			s.tracker.WarmingUp(job.ID, attempt.Name)
		},
		OnAttempt: func(attempt models.ExtractionAttempt) {
			s.tracker.BeginAttempt(job.ID, attempt.Name)
		},
	}

	strategy, err := s.chain.Run(s.ctx, job.URL, attempts, op, hooks)
	if err != nil {
		kind, message := describeFailure(err)
		s.tracker.Fail(job.ID, string(kind), message)

		jobLogger.Error().
			Err(err).
			Str("download_id", job.ID).
			Str("kind", string(kind)).
			Str("elapsed", time.Since(start).String()).
			Msg("Download failed")

		s.publish(interfaces.EventDownloadFailed, map[string]interface{}{
			"download_id": job.ID,
			"status":      string(models.StatusError),
			"kind":        string(kind),
			"error":       message,
		})
		return
	}

	s.tracker.Complete(job.ID, *result)

	jobLogger.Info().
		Str("download_id", job.ID).
		Str("strategy", strategy).
		Str("filename", result.Filename).
		Str("elapsed", time.Since(start).String()).
		Msg("Download completed")

	s.publish(interfaces.EventDownloadCompleted, map[string]interface{}{
		"download_id": job.ID,
		"status":      string(models.StatusCompleted),
		"filename":    result.Filename,
		"strategy":    strategy,
	})
}

// download runs one attempt, forwarding engine events into the tracker until the engine returns
func (s *Service) download(ctx context.Context, job *models.DownloadJob, attempt models.ExtractionAttempt) (*models.DownloadResult, error) {
	events := make(chan models.ProgressEvent, s.config.EventBuffer)
	done := make(chan struct{})

	common.SafeGo(s.logger, "progress-"+job.ID, func() {
		defer close(done)
		for event := range events {
			s.tracker.Record(job.ID, event)
		}
	})

	result, err := s.extractor.Download(ctx, attempt, job.URL, events)
	close(events)
	<-done

	return result, err
}

// VideoInfo looks up metadata through the same strategy chain. The credential is not released
// so it can be reused for the download that usually follows.
func (s *Service) VideoInfo(ctx context.Context, req models.VideoInfoRequest) (*models.VideoInfo, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cookieFile := s.resolveCookie(req.CookieID, s.logger)

	attempts := extraction.BuildChain(extraction.ChainOptions{
		Quality:        extraction.QualityBest,
		CookieFile:     cookieFile,
		Proxy:          s.config.Proxy,
		Profile:        s.config.Profile,
		Tuning:         s.config.Tuning,
		BrowserEnabled: s.config.BrowserEnabled,
	})

	var metadata *models.VideoMetadata
	op := func(ctx context.Context, attempt models.ExtractionAttempt) error {
		m, err := s.extractor.ExtractInfo(ctx, attempt, req.URL)
		if err != nil {
			return err
		}
		metadata = m
		return nil
	}

	strategy, err := s.chain.Run(ctx, req.URL, attempts, op, extraction.Hooks{})
	if err != nil {
		return nil, err
	}

	info := Summarise(metadata)
	info.Strategy = strategy
	return info, nil
}

func (s *Service) resolveCookie(id string, logger arbor.ILogger) string {
	if id == "" || s.cookies == nil {
		return ""
	}
	path, ok := s.cookies.Resolve(id)
	if !ok {
		// Expired or never uploaded; extraction continues without a credential
		logger.Warn().Str("cookie_id", id).Msg("Cookie not found - continuing without credentials")
		return ""
	}
	return path
}

func (s *Service) releaseCookie(id string) {
	if s.cookies == nil {
		return
	}
	s.cookies.Release(id)
	s.publish(interfaces.EventCookieReleased, map[string]interface{}{
		"cookie_id": id,
	})
}

func (s *Service) publish(eventType interfaces.EventType, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	event := interfaces.Event{Type: eventType, Payload: payload}
	if err := s.events.Publish(s.ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}

// describeFailure returns the failure kind and the message shown to clients
func describeFailure(err error) (extraction.ErrorKind, string) {
	var extErr *extraction.Error
	if errors.As(err, &extErr) {
		return extErr.Kind, extErr.UserMessage()
	}
	return extraction.Classify(err), err.Error()
}

package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/interfaces"
	"github.com/ternarybob/tubefetch/internal/models"
)

// Strategy names, in escalation order
const (
	StrategyMobileClient        = "mobile_client"
	StrategyMobileClientCookies = "mobile_client_cookies"
	StrategyBrowserWarmUp       = "browser_warmup"
)

// ChainOptions carries the per-job inputs used to build a fresh chain
type ChainOptions struct {
	Quality        string
	CookieFile     string // Empty when no credential was supplied or it already expired
	OutputTemplate string
	Proxy          string
	Profile        models.ClientProfile
	Tuning         models.TransferTuning
	BrowserEnabled bool
}

// DefaultProfile returns the mobile client identity
func DefaultProfile(playerClients []string, userAgent string) models.ClientProfile {
	clients := append([]string(nil), playerClients...)
	return models.ClientProfile{
		PlayerClients: clients,
		PlayerSkip:    []string{"webpage", "configs"},
		Skip:          []string{"dash", "hls"},
		UserAgent:     userAgent,
		Headers: map[string]string{
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// BuildChain returns the ordered attempts for one job.
// The cookie attempt is only present when a credential exists, since without one it would repeat
// the first attempt verbatim. The browser attempt is only present when the browser is enabled.
func BuildChain(opts ChainOptions) []models.ExtractionAttempt {
	base := models.ExtractionAttempt{
		Client:         opts.Profile,
		Proxy:          opts.Proxy,
		Tuning:         opts.Tuning,
		Format:         FormatSelector(opts.Quality),
		FormatSort:     defaultFormatSort,
		MergeFormat:    defaultMergeFormat,
		OutputTemplate: opts.OutputTemplate,
	}

	mobile := base
	mobile.Name = StrategyMobileClient
	attempts := []models.ExtractionAttempt{mobile}

	if opts.CookieFile != "" {
		withCookies := base
		withCookies.Name = StrategyMobileClientCookies
		withCookies.CookieFile = opts.CookieFile
		attempts = append(attempts, withCookies)
	}

	if opts.BrowserEnabled {
		browser := base
		browser.Name = StrategyBrowserWarmUp
		browser.WarmUp = true
		browser.CookieFile = opts.CookieFile
		attempts = append(attempts, browser)
	}

	return attempts
}

// Operation performs one attempt against the engine
type Operation func(ctx context.Context, attempt models.ExtractionAttempt) error

// Hooks observe chain progress; nil hooks are skipped
type Hooks struct {
	OnWarmUp  func(attempt models.ExtractionAttempt)
	OnAttempt func(attempt models.ExtractionAttempt)
}

// Chain runs attempts in order, escalating only on bot detection
type Chain struct {
	warmer         interfaces.BrowserWarmer
	warmUpTimeout  time.Duration
	attemptTimeout time.Duration
	logger         arbor.ILogger
}

// NewChain creates a chain runner. warmer may be nil, in which case warm-up steps are skipped.
func NewChain(warmer interfaces.BrowserWarmer, warmUpTimeout, attemptTimeout time.Duration, logger arbor.ILogger) *Chain {
	return &Chain{
		warmer:         warmer,
		warmUpTimeout:  warmUpTimeout,
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}
}

// Run tries each attempt until one succeeds and returns the successful strategy name.
// A failure that is not bot detection ends the chain immediately. When the last attempt is
// also bot-blocked the returned *Error carries KindBotDetected and the remediation message.
func (c *Chain) Run(ctx context.Context, pageURL string, attempts []models.ExtractionAttempt, op Operation, hooks Hooks) (string, error) {
	if len(attempts) == 0 {
		return "", &Error{Kind: KindExtractionFailed, Err: errors.New("no extraction strategies configured")}
	}

	tried := make([]string, 0, len(attempts))
	var lastErr error

	for i, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return "", &Error{Kind: KindNetwork, Strategy: attempt.Name, Attempts: tried, Err: err}
		}

		if attempt.WarmUp {
			if hooks.OnWarmUp != nil {
				hooks.OnWarmUp(attempt)
			}
			c.warmUp(ctx, pageURL, attempt)
		}

		if hooks.OnAttempt != nil {
			hooks.OnAttempt(attempt)
		}

		tried = append(tried, attempt.Name)
		err := c.runAttempt(ctx, attempt, op)
		if err == nil {
			c.logger.Info().
				Str("strategy", attempt.Name).
				Int("attempt", i+1).
				Msg("Extraction attempt succeeded")
			return attempt.Name, nil
		}

		kind := Classify(err)
		c.logger.Warn().
			Err(err).
			Str("strategy", attempt.Name).
			Str("kind", string(kind)).
			Int("attempt", i+1).
			Int("total", len(attempts)).
			Msg("Extraction attempt failed")

		if kind != KindBotDetected {
			return "", &Error{Kind: kind, Strategy: attempt.Name, Attempts: tried, Err: err}
		}

		lastErr = err
		if i < len(attempts)-1 {
			c.logger.Info().
				Str("from", attempt.Name).
				Str("to", attempts[i+1].Name).
				Msg("Bot detection reported - escalating strategy")
		}
	}

	return "", &Error{
		Kind:     KindBotDetected,
		Strategy: attempts[len(attempts)-1].Name,
		Attempts: tried,
		Err:      lastErr,
	}
}

func (c *Chain) runAttempt(ctx context.Context, attempt models.ExtractionAttempt, op Operation) error {
	if c.attemptTimeout <= 0 {
		return op(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()
	return op(attemptCtx, attempt)
}

// warmUp never fails the attempt; a broken browser just means extraction runs without the visit
func (c *Chain) warmUp(ctx context.Context, pageURL string, attempt models.ExtractionAttempt) {
	if c.warmer == nil {
		c.logger.Debug().Str("strategy", attempt.Name).Msg("No browser configured - skipping warm-up")
		return
	}

	warmCtx := ctx
	if c.warmUpTimeout > 0 {
		var cancel context.CancelFunc
		warmCtx, cancel = context.WithTimeout(ctx, c.warmUpTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := c.warmer.WarmUp(warmCtx, pageURL, attempt.CookieFile); err != nil {
		c.logger.Warn().
			Err(err).
			Str("strategy", attempt.Name).
			Msg("Browser warm-up failed - continuing with extraction")
		return
	}

	c.logger.Debug().
		Str("strategy", attempt.Name).
		Str("elapsed", time.Since(start).String()).
		Msg("Browser warm-up complete")
}

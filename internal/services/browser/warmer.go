package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/models"
	"github.com/ternarybob/tubefetch/internal/services/cookies"
)

// ErrChallenge is returned when the warmed page is an interstitial rather than the video page
var ErrChallenge = errors.New("page returned a verification challenge")

// WarmerConfig holds configuration for the headless browser
type WarmerConfig struct {
	Headless    bool          `json:"headless"`
	UserAgent   string        `json:"user_agent"`
	Proxy       string        `json:"proxy"`
	WaitTime    time.Duration `json:"wait_time"`    // Settle time after navigation
	FallbackURL string        `json:"fallback_url"` // Visited when no page URL is given
}

// Warmer visits a page in a fresh headless Chrome so the site sees an ordinary browser
// session (with the job's cookies, when present) before the engine runs
type Warmer struct {
	config WarmerConfig
	logger arbor.ILogger
	now    func() time.Time
}

// NewWarmer creates a warmer. Chrome is launched per call, not at construction.
func NewWarmer(config WarmerConfig, logger arbor.ILogger) *Warmer {
	return &Warmer{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// WarmUp launches a browser, injects cookies from cookieFile, loads pageURL and inspects the result
func (w *Warmer) WarmUp(ctx context.Context, pageURL, cookieFile string) error {
	target := pageURL
	if target == "" {
		target = w.config.FallbackURL
	}
	if target == "" {
		return fmt.Errorf("no page to warm up")
	}

	var params []*network.CookieParam
	if cookieFile != "" {
		records, err := cookies.ParseFile(cookieFile)
		if err != nil {
			// The engine gets the same file; a browser that can't read it still warms up without it
			w.logger.Warn().Err(err).Msg("Failed to read cookie file for browser - continuing without cookies")
		} else {
			params = CookieParams(records, w.now())
		}
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", w.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
	)
	if w.config.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(w.config.UserAgent))
	}
	if w.config.Proxy != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ProxyServer(w.config.Proxy))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	w.logger.Debug().
		Str("url", target).
		Int("cookie_count", len(params)).
		Bool("headless", w.config.Headless).
		Msg("Starting browser warm-up")

	var html string
	err := chromedp.Run(browserCtx,
		network.Enable(),
		injectCookies(params, w.logger),
		chromedp.Navigate(target),
		chromedp.Sleep(w.config.WaitTime),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("browser warm-up failed: %w", err)
	}

	report, err := InspectPage(html)
	if err != nil {
		return fmt.Errorf("failed to inspect warmed page: %w", err)
	}

	w.logger.Debug().
		Str("url", target).
		Str("title", report.Title).
		Bool("challenge", report.Challenge).
		Bool("consent", report.ConsentWall).
		Msg("Browser warm-up page loaded")

	if report.Challenge {
		return ErrChallenge
	}
	return nil
}

// injectCookies sets each cookie, continuing past individual failures
func injectCookies(params []*network.CookieParam, logger arbor.ILogger) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		failed := 0
		for _, cookie := range params {
			if err := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithSecure(cookie.Secure).
				WithHTTPOnly(cookie.HTTPOnly).
				WithExpires(cookie.Expires).
				Do(ctx); err != nil {
				failed++
				logger.Debug().
					Err(err).
					Str("cookie_name", cookie.Name).
					Str("domain", cookie.Domain).
					Msg("Failed to inject cookie into browser")
			}
		}
		if failed > 0 {
			logger.Warn().
				Int("failed", failed).
				Int("total", len(params)).
				Msg("Some cookies could not be injected")
		}
		return nil
	})
}

// CookieParams converts parsed records to browser cookie parameters, skipping expired ones
func CookieParams(records []models.BrowserCookie, now time.Time) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(records))
	for _, c := range records {
		if c.IsExpired(now) || c.Name == "" {
			continue
		}

		path := c.Path
		if path == "" {
			path = "/"
		}

		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.HostDomain(),
			Path:     path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Expires.IsZero() {
			expires := cdp.TimeSinceEpoch(c.Expires)
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return params
}

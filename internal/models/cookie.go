package models

import (
	"strings"
	"time"
)

// CookieArtifact is a stored credential file
type CookieArtifact struct {
	ID        string    `json:"id"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// BrowserCookie is one record of a Netscape cookie file
type BrowserCookie struct {
	Domain            string    `json:"domain"`
	IncludeSubdomains bool      `json:"include_subdomains"`
	Path              string    `json:"path"`
	Secure            bool      `json:"secure"`
	Expires           time.Time `json:"expires"` // Zero for session cookies
	Name              string    `json:"name"`
	Value             string    `json:"value"`
	HTTPOnly          bool      `json:"http_only"`
}

// HostDomain returns the domain without the leading dot used for subdomain matching
func (c BrowserCookie) HostDomain() string {
	return strings.TrimPrefix(c.Domain, ".")
}

// IsExpired reports whether a persistent cookie expired before now
func (c BrowserCookie) IsExpired(now time.Time) bool {
	return !c.Expires.IsZero() && c.Expires.Before(now)
}

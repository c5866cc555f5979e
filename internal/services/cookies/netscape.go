package cookies

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/tubefetch/internal/models"
)

const (
	httpOnlyPrefix = "#HttpOnly_"
	recordFields   = 7
)

var headerMarkers = []string{
	"# Netscape HTTP Cookie File",
	"# HTTP Cookie File",
}

// ParseResult summarises a Netscape cookie document
type ParseResult struct {
	HasHeader bool
	Cookies   []models.BrowserCookie
	Malformed []int // 1-based line numbers that are neither comments nor valid records
}

// ParseNetscape parses the tab-delimited Netscape cookie format.
// Lines prefixed with #HttpOnly_ are records, other # lines are comments.
func ParseNetscape(data []byte) (*ParseResult, error) {
	if !utf8.Valid(data) {
		return nil, models.NewValidationError("cookies", "file is not valid UTF-8 text")
	}

	result := &ParseResult{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFileSize+1)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(line, "#") {
			for _, marker := range headerMarkers {
				if strings.HasPrefix(line, marker) {
					result.HasHeader = true
				}
			}
			continue
		}

		cookie, err := parseRecord(line)
		if err != nil {
			result.Malformed = append(result.Malformed, lineNo)
			continue
		}
		cookie.HTTPOnly = httpOnly
		result.Cookies = append(result.Cookies, cookie)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cookie file: %w", err)
	}

	return result, nil
}

// Validate applies the acceptance rule: no malformed lines, and either a header marker or at least one record
func (r *ParseResult) Validate() error {
	if len(r.Malformed) > 0 {
		return models.NewValidationError("cookies", "invalid Netscape cookie format at line %d", r.Malformed[0])
	}
	if !r.HasHeader && len(r.Cookies) == 0 {
		return models.NewValidationError("cookies", "no Netscape cookie header or records found")
	}
	return nil
}

func parseRecord(line string) (models.BrowserCookie, error) {
	fields := strings.SplitN(line, "\t", recordFields)
	if len(fields) != recordFields {
		return models.BrowserCookie{}, fmt.Errorf("expected %d fields, got %d", recordFields, len(fields))
	}

	includeSubdomains, err := parseFlag(fields[1])
	if err != nil {
		return models.BrowserCookie{}, err
	}
	secure, err := parseFlag(fields[3])
	if err != nil {
		return models.BrowserCookie{}, err
	}
	expiry, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
	if err != nil {
		return models.BrowserCookie{}, fmt.Errorf("invalid expiry: %w", err)
	}
	if fields[0] == "" || fields[5] == "" {
		return models.BrowserCookie{}, fmt.Errorf("domain and name are required")
	}

	cookie := models.BrowserCookie{
		Domain:            fields[0],
		IncludeSubdomains: includeSubdomains,
		Path:              fields[2],
		Secure:            secure,
		Name:              fields[5],
		Value:             fields[6],
	}
	if expiry > 0 {
		cookie.Expires = time.Unix(expiry, 0)
	}
	return cookie, nil
}

func parseFlag(value string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean flag %q", value)
	}
}

// ParseFile reads a stored cookie file and returns its records
func ParseFile(path string) ([]models.BrowserCookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	result, err := ParseNetscape(data)
	if err != nil {
		return nil, err
	}

	return result.Cookies, nil
}

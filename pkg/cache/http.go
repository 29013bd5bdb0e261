package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when the response carries no freshness
	// headers
	DefaultTTL = 5 * time.Minute
)

// ResponseToEntry converts a response to a CacheEntry.
// It returns nil if the response must not be cached: any status other than
// 200, or a Cache-Control directive of no-store, no-cache or max-age=0.
func ResponseToEntry(statusCode int, headers http.Header, body []byte, defaultTTL time.Duration) *CacheEntry {
	if statusCode != http.StatusOK {
		return nil
	}

	expires, ok := parseExpires(headers, defaultTTL)
	if !ok {
		return nil
	}

	return &CacheEntry{
		Data:       append([]byte(nil), body...),
		StatusCode: statusCode,
		Headers:    headers.Clone(),
		Expires:    expires,
		CachedAt:   time.Now(),
	}
}

// parseExpires derives the expiration time from Cache-Control max-age, then
// Expires, then defaultTTL. Returns false if the response forbids caching.
func parseExpires(headers http.Header, defaultTTL time.Duration) (time.Time, bool) {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	now := time.Now()

	for _, directive := range strings.Split(headers.Get("Cache-Control"), ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		switch {
		case directive == "no-store", directive == "no-cache":
			return time.Time{}, false
		case strings.HasPrefix(directive, "max-age="):
			seconds, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
			if err != nil {
				continue
			}
			if seconds <= 0 {
				return time.Time{}, false
			}
			return now.Add(time.Duration(seconds) * time.Second), true
		}
	}

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return now.Add(defaultTTL), true
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		// Failed to parse expires header - use default TTL
		return now.Add(defaultTTL), true
	}
	if !expires.After(now) {
		return time.Time{}, false
	}
	return expires, true
}

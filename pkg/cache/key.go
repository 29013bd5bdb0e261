package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix starts every cache key.
const KeyPrefix = "suitetalk"

// CacheKey identifies a cached SuiteTalk REST response.
type CacheKey struct {
	// Account is the NetSuite account id. Responses are never shared across
	// accounts.
	Account string

	// Path is the REST path, e.g. "/services/rest/record/v1/customer/42".
	Path string

	// Query holds the query parameters of the request.
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: suitetalk:account:path:query1=val1:query2=val2
//
// Example:
//
//	suitetalk:1234567_sb1:services/rest/record/v1/customer:limit=100:offset=0
func (k CacheKey) String() string {
	parts := []string{k.pathPrefix()}

	if len(k.Query) > 0 {
		keys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := append([]string(nil), k.Query[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}

// pathPrefix is the key without query parameters.
func (k CacheKey) pathPrefix() string {
	parts := []string{KeyPrefix, strings.ToLower(k.Account)}
	if path := strings.Trim(k.Path, "/"); path != "" {
		parts = append(parts, path)
	}
	return strings.Join(parts, ":")
}

// matchPattern returns a SCAN pattern for every key of the same account and
// path, whatever the query.
func (k CacheKey) matchPattern() string {
	return escapeGlob(k.pathPrefix()) + "*"
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestResponseToEntry(t *testing.T) {
	future := time.Now().Add(10 * time.Minute).UTC().Format(http.TimeFormat)
	past := time.Now().Add(-10 * time.Minute).UTC().Format(http.TimeFormat)

	tests := []struct {
		name    string
		status  int
		headers http.Header
		wantNil bool
		minTTL  time.Duration
		maxTTL  time.Duration
	}{
		{
			name:    "default ttl",
			status:  http.StatusOK,
			headers: http.Header{},
			minTTL:  55 * time.Second,
			maxTTL:  time.Minute,
		},
		{
			name:    "max-age wins over expires",
			status:  http.StatusOK,
			headers: http.Header{"Cache-Control": {"private, max-age=30"}, "Expires": {future}},
			minTTL:  25 * time.Second,
			maxTTL:  30 * time.Second,
		},
		{
			name:    "expires header",
			status:  http.StatusOK,
			headers: http.Header{"Expires": {future}},
			minTTL:  9 * time.Minute,
			maxTTL:  10 * time.Minute,
		},
		{
			name:    "expired expires header",
			status:  http.StatusOK,
			headers: http.Header{"Expires": {past}},
			wantNil: true,
		},
		{
			name:    "invalid expires uses default",
			status:  http.StatusOK,
			headers: http.Header{"Expires": {"tomorrow"}},
			minTTL:  55 * time.Second,
			maxTTL:  time.Minute,
		},
		{
			name:    "no-store",
			status:  http.StatusOK,
			headers: http.Header{"Cache-Control": {"No-Store"}},
			wantNil: true,
		},
		{
			name:    "no-cache",
			status:  http.StatusOK,
			headers: http.Header{"Cache-Control": {"no-cache"}},
			wantNil: true,
		},
		{
			name:    "max-age zero",
			status:  http.StatusOK,
			headers: http.Header{"Cache-Control": {"max-age=0"}},
			wantNil: true,
		},
		{
			name:    "not found is not cached",
			status:  http.StatusNotFound,
			headers: http.Header{},
			wantNil: true,
		},
		{
			name:    "no content is not cached",
			status:  http.StatusNoContent,
			headers: http.Header{},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := ResponseToEntry(tt.status, tt.headers, []byte(`{"id":"1"}`), time.Minute)
			if tt.wantNil {
				if entry != nil {
					t.Errorf("ResponseToEntry() = %+v, want nil", entry)
				}
				return
			}
			if entry == nil {
				t.Fatal("ResponseToEntry() = nil, want entry")
			}
			if ttl := entry.TTL(); ttl < tt.minTTL || ttl > tt.maxTTL {
				t.Errorf("TTL() = %v, want between %v and %v", ttl, tt.minTTL, tt.maxTTL)
			}
			if string(entry.Data) != `{"id":"1"}` || entry.StatusCode != tt.status {
				t.Errorf("entry = %+v", entry)
			}
		})
	}
}

func TestResponseToEntry_CopiesInput(t *testing.T) {
	body := []byte("abc")
	headers := http.Header{"X-Test": {"1"}}

	entry := ResponseToEntry(http.StatusOK, headers, body, 0)
	body[0] = 'z'
	headers.Set("X-Test", "2")

	if string(entry.Data) != "abc" {
		t.Errorf("Data = %q, want abc", entry.Data)
	}
	if got := entry.Headers.Get("X-Test"); got != "1" {
		t.Errorf("header = %q, want 1", got)
	}
	if ttl := entry.TTL(); ttl < DefaultTTL-5*time.Second {
		t.Errorf("TTL() = %v, want DefaultTTL", ttl)
	}
}

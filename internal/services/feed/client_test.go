package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"conveyor/internal/config"
	"conveyor/internal/services"
)

func newServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.Monitor{BaseURL: server.URL, APIKey: "secret"})
}

func TestRecentRoundTrip(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/channels/UCabc/videos" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "3" {
			t.Errorf("unexpected limit: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"videos":[
			{"url":"https://example.com/watch?v=1","title":"First","duration_seconds":120},
			{"url":"","title":"no url, dropped"},
			{"url":"https://example.com/watch?v=2","title":"Second","duration_seconds":45}
		]}`))
	})

	videos, err := client.Recent(context.Background(), "UCabc", 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d: %+v", len(videos), videos)
	}
	if videos[0].Title != "First" || videos[0].DurationSeconds != 120 {
		t.Fatalf("unexpected first video: %+v", videos[0])
	}
}

func TestRecentRequiresChannel(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})
	_, err := client.Recent(context.Background(), "  ", 5)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecentStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, services.ErrQuota},
		{http.StatusServiceUnavailable, services.ErrTransient},
		{http.StatusForbidden, services.ErrPermanent},
	}
	for _, tc := range cases {
		client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := client.Recent(context.Background(), "UCabc", 1)
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestRecentMalformedResponseIsParseError(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"videos": "nope"`))
	})
	_, err := client.Recent(context.Background(), "UCabc", 1)
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

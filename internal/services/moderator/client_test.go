package moderator

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
	return New(config.Moderator{Enabled: true, BaseURL: server.URL, APIKey: "secret", TimeoutSeconds: 5})
}

func TestReviewPass(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pass":true,"findings":[]}`))
	})

	decision, err := client.Review(context.Background(), Request{Title: "clean title"})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if !decision.Pass || len(decision.Findings) != 0 {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestReviewFailWithFindings(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"pass": false,
			"findings": [{"field":"title","term":"banned-word","severity":"block"}]
		}`))
	})

	decision, err := client.Review(context.Background(), Request{Title: "bad title"})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if decision.Pass {
		t.Fatal("expected failing verdict")
	}
	if len(decision.Findings) != 1 || decision.Findings[0].Term != "banned-word" {
		t.Fatalf("unexpected findings: %+v", decision.Findings)
	}
}

func TestReviewFailWithoutFindingsGetsPlaceholder(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pass":false}`))
	})

	decision, err := client.Review(context.Background(), Request{Title: "t"})
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if len(decision.Findings) != 1 || decision.Findings[0].Field != "unknown" {
		t.Fatalf("expected placeholder finding, got %+v", decision.Findings)
	}
}

func TestReviewStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, services.ErrQuota},
		{http.StatusGatewayTimeout, services.ErrTransient},
		{http.StatusForbidden, services.ErrPermanent},
	}
	for _, tc := range cases {
		client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := client.Review(context.Background(), Request{Title: "t"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

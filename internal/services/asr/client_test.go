package asr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/services"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment.wav")
	if err := os.WriteFile(path, []byte("RIFFfake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func newServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.ASR{BaseURL: server.URL, APIKey: "secret", Model: "whisper-1", TimeoutSeconds: 5})
}

func TestTranscribePlainTextResponse(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("missing auth header: %q", got)
		}
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			t.Errorf("expected multipart upload: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model field = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language field = %q, want canonical en", got)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello world\n"))
	})

	transcript, err := client.Transcribe(context.Background(), Request{
		AudioPath: writeAudio(t),
		Language:  "en-US",
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Text != "hello world" {
		t.Fatalf("unexpected text: %q", transcript.Text)
	}
}

func TestTranscribeSimpleJSONResponse(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" hello json ","language":"english"}`))
	})

	transcript, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudio(t)})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Text != "hello json" {
		t.Fatalf("unexpected text: %q", transcript.Text)
	}
	if transcript.Language != "en" {
		t.Fatalf("language = %q, want en", transcript.Language)
	}
}

func TestTranscribeVerboseJSONResponse(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"language": "en",
			"segments": [
				{"start": 0.0, "end": 2.5, "text": " first part ", "confidence": 0.9},
				{"start": 2.5, "end": 5.0, "text": "second part", "avg_logprob": -0.3}
			]
		}`))
	})

	transcript, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudio(t)})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Text != "first part second part" {
		t.Fatalf("unexpected stitched text: %q", transcript.Text)
	}
	if len(transcript.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(transcript.Segments))
	}
	if transcript.Segments[0].Confidence != 0.9 {
		t.Fatalf("segment confidence = %v", transcript.Segments[0].Confidence)
	}
	if got := transcript.Segments[1].Confidence; got < 0.69 || got > 0.71 {
		t.Fatalf("logprob-derived confidence = %v, want ~0.7", got)
	}
	if transcript.Confidence < 0.79 || transcript.Confidence > 0.81 {
		t.Fatalf("mean confidence = %v, want ~0.8", transcript.Confidence)
	}
}

func TestTranscribeEmptyJSONIsParseError(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	_, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudio(t)})
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestTranscribeStatusMapping(t *testing.T) {
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
		_, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudio(t)})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestTranscribeRetriesUntilSuccess(t *testing.T) {
	var calls int
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"third time"}`))
	})

	policy := services.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, QuotaDelay: time.Millisecond}
	audio := writeAudio(t)
	var transcript Transcript
	attempts, err := services.Retry(context.Background(), policy, func(ctx context.Context) error {
		var opErr error
		transcript, opErr = client.Transcribe(ctx, Request{AudioPath: audio})
		return opErr
	})
	if err != nil {
		t.Fatalf("retry loop failed after %d attempts: %v", attempts, err)
	}
	if attempts != 3 || transcript.Text != "third time" {
		t.Fatalf("attempts=%d text=%q", attempts, transcript.Text)
	}
}

func TestCanonicalLanguage(t *testing.T) {
	cases := map[string]string{
		"":         "",
		"en":       "en",
		"en-US":    "en",
		"EN":       "en",
		"zh-Hans":  "zh",
		"eng":      "en",
		"japanese": "ja",
		"??":       "??",
	}
	for input, want := range cases {
		if got := CanonicalLanguage(input); got != want {
			t.Errorf("CanonicalLanguage(%q) = %q, want %q", input, got, want)
		}
	}
}

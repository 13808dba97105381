package enhancer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"conveyor/internal/config"
	"conveyor/internal/services"
)

func newServerClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.Enhancer{BaseURL: server.URL, APIKey: "secret", Model: "gpt-test", TimeoutSeconds: 5})
}

func TestEnhanceRoundTrip(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title          string `json:"title"`
			TargetLanguage string `json:"target_language"`
			Model          string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Title != "Original Title" || req.TargetLanguage != "zh" || req.Model != "gpt-test" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"translated_title": "译文标题",
			"translated_description": "译文描述",
			"tags": [" gaming ", "Gaming", "", "speedrun"],
			"category": "games"
		}`))
	})

	result, err := client.Enhance(context.Background(), Request{
		Title:          "Original Title",
		Description:    "Original description",
		TargetLanguage: "zh",
	})
	if err != nil {
		t.Fatalf("Enhance failed: %v", err)
	}
	if result.Title != "译文标题" || result.Category != "games" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if want := []string{"gaming", "speedrun"}; !reflect.DeepEqual(result.Tags, want) {
		t.Fatalf("tags = %v, want %v", result.Tags, want)
	}
}

func TestEnhanceRequiresTitle(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})
	_, err := client.Enhance(context.Background(), Request{Description: "no title"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnhanceMissingTitleInResponseIsParseError(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tags":["a"]}`))
	})
	_, err := client.Enhance(context.Background(), Request{Title: "t"})
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestTranslateLinesRoundTrip(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/subtitles/translate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Lines          []string `json:"lines"`
			TargetLanguage string   `json:"target_language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Lines) != 2 || req.TargetLanguage != "zh" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lines":["第一句","第二句"]}`))
	})

	lines, err := client.TranslateLines(context.Background(), []string{"first line", "second line"}, "zh")
	if err != nil {
		t.Fatalf("TranslateLines failed: %v", err)
	}
	if want := []string{"第一句", "第二句"}; !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
}

func TestTranslateLinesCountMismatchIsParseError(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lines":["only one"]}`))
	})
	_, err := client.TranslateLines(context.Background(), []string{"a", "b"}, "zh")
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestTranslateLinesEmptyInputSkipsCall(t *testing.T) {
	client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})
	lines, err := client.TranslateLines(context.Background(), nil, "zh")
	if err != nil || lines != nil {
		t.Fatalf("expected no-op, got %v, %v", lines, err)
	}
}

func TestEnhanceStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, services.ErrQuota},
		{http.StatusInternalServerError, services.ErrTransient},
		{http.StatusUnauthorized, services.ErrPermanent},
	}
	for _, tc := range cases {
		client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := client.Enhance(context.Background(), Request{Title: "t"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

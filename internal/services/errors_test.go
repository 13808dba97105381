package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"transient", Wrap(ErrTransient, "fetch", "download", "connection reset", nil), ClassTransient},
		{"quota", Wrap(ErrQuota, "enhance", "translate", "rate limited", nil), ClassQuota},
		{"permanent", Wrap(ErrPermanent, "upload", "publish", "rejected", nil), ClassPermanent},
		{"validation", Wrap(ErrValidation, "fetch", "prepare", "no url", nil), ClassPermanent},
		{"not found", Wrap(ErrNotFound, "subtitles", "prepare", "media missing", nil), ClassPermanent},
		{"parse", Wrap(ErrParse, "subtitles", "asr", "malformed response", nil), ClassParse},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"untagged", errors.New("something odd"), ClassUnknown},
		{"nil", nil, ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(Wrap(ErrPermanent, "upload", "publish", "rejected", nil)) {
		t.Fatal("permanent errors must not be retryable")
	}
	if Retryable(Wrap(ErrParse, "subtitles", "asr", "bad shape", nil)) {
		t.Fatal("parse errors must not be retryable")
	}
	if !Retryable(Wrap(ErrTransient, "fetch", "download", "timeout", nil)) {
		t.Fatal("transient errors must be retryable")
	}
	if !Retryable(errors.New("mislabelled")) {
		t.Fatal("unknown errors must stay retryable")
	}
	if Retryable(nil) {
		t.Fatal("nil is not retryable")
	}
}

func TestMarkerForStatus(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusTooManyRequests, ErrQuota},
		{http.StatusRequestTimeout, ErrTransient},
		{http.StatusInternalServerError, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
		{http.StatusUnauthorized, ErrPermanent},
		{http.StatusForbidden, ErrPermanent},
		{http.StatusNotFound, ErrPermanent},
		{http.StatusUnprocessableEntity, ErrPermanent},
	}
	for _, tc := range cases {
		if got := MarkerForStatus(tc.code); !errors.Is(got, tc.want) {
			t.Fatalf("MarkerForStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestWrapDetails(t *testing.T) {
	err := Wrap(ErrQuota, "enhance", "translate", "rate limited", nil)
	details := Details(err)
	if details.Class != ClassQuota {
		t.Fatalf("wrong class: %s", details.Class)
	}
	if details.Stage != "enhance" {
		t.Fatalf("wrong stage: %q", details.Stage)
	}
	if details.Message != "translate: rate limited" {
		t.Fatalf("wrong message: %q", details.Message)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := Wrap(ErrTransient, "fetch", "download", "stream interrupted", cause)
	if !errors.Is(err, cause) {
		t.Fatal("wrapped error must match its cause")
	}
	if !errors.Is(err, ErrTransient) {
		t.Fatal("wrapped error must match its marker")
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "fetch", "download", "no marker", nil)
	if Classify(err) != ClassTransient {
		t.Fatalf("nil marker should default to transient, got %s", Classify(err))
	}
}

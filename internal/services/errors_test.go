package services_test

import (
	"errors"
	"fmt"
	"testing"

	"chaptercast/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "chapter", "fetch", "request failed", cause)

	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("expected transient marker")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause")
	}
	want := "transient failure: chapter: fetch: request failed: connection reset"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "sync", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("nil marker must default to transient")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want services.Disposition
	}{
		{services.Wrap(services.ErrTransient, "chapter", "fetch", "", nil), services.DispositionRetry},
		{services.Wrap(services.ErrExternalTool, "convert", "mux", "", nil), services.DispositionRetry},
		{errors.New("unclassified"), services.DispositionRetry},
		{services.Wrap(services.ErrValidation, "metadata", "parse", "", nil), services.DispositionFail},
		{services.Wrap(services.ErrNotFound, "synthesize", "load", "", nil), services.DispositionFail},
		{services.Wrap(services.ErrConfiguration, "sync", "", "", nil), services.DispositionFail},
		{services.Wrap(services.ErrContention, "sync", "lock", "", nil), services.DispositionContention},
		{services.Wrap(services.ErrStoreUnavailable, "chapter", "read", "", nil), services.DispositionRelease},
		{fmt.Errorf("outer: %w", services.ErrContention), services.DispositionContention},
	}
	for i, tc := range cases {
		if got := services.Classify(tc.err); got != tc.want {
			t.Errorf("case %d: Classify(%v) = %v, want %v", i, tc.err, got, tc.want)
		}
	}
}

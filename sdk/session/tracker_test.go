package session

import (
	"context"
	"errors"
	"net/url"
	"testing"
)

func TestTrackerSupersedesIdenticalRequest(t *testing.T) {
	tracker := NewTracker()
	fp := Fingerprint("GET", "/questions", nil, nil)

	first, firstHandle := tracker.Begin(context.Background(), fp)
	second, secondHandle := tracker.Begin(context.Background(), fp)

	if first.Err() == nil {
		t.Fatal("expected first request to be cancelled")
	}
	if !errors.Is(context.Cause(first), ErrSuperseded) {
		t.Fatalf("cause = %v, want ErrSuperseded", context.Cause(first))
	}
	if second.Err() != nil {
		t.Fatalf("second request cancelled: %v", second.Err())
	}
	if got := tracker.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}

	// The superseded request finishing must not evict its successor.
	tracker.End(fp, firstHandle)
	if got := tracker.Len(); got != 1 {
		t.Fatalf("Len() after stale End = %d, want 1", got)
	}
	if second.Err() != nil {
		t.Fatalf("stale End cancelled the successor: %v", second.Err())
	}

	tracker.End(fp, secondHandle)
	if got := tracker.Len(); got != 0 {
		t.Fatalf("Len() after End = %d, want 0", got)
	}
}

func TestTrackerDistinctFingerprintsCoexist(t *testing.T) {
	tracker := NewTracker()
	a, _ := tracker.Begin(context.Background(), Fingerprint("GET", "/topics", nil, nil))
	b, _ := tracker.Begin(context.Background(), Fingerprint("GET", "/languages", nil, nil))
	if a.Err() != nil || b.Err() != nil {
		t.Fatal("distinct fingerprints must not cancel each other")
	}
	if got := tracker.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestTrackerCancelAll(t *testing.T) {
	tracker := NewTracker()
	ctxA, _ := tracker.Begin(context.Background(), "a")
	ctxB, _ := tracker.Begin(context.Background(), "b")

	tracker.CancelAll()

	for name, ctx := range map[string]context.Context{"a": ctxA, "b": ctxB} {
		if !errors.Is(context.Cause(ctx), ErrCancelled) {
			t.Fatalf("%s: cause = %v, want ErrCancelled", name, context.Cause(ctx))
		}
	}
	if got := tracker.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
}

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{
			name:  "query order is irrelevant",
			a:     Fingerprint("get", "/questions", url.Values{"topic": {"go"}, "page": {"1"}}, nil),
			b:     Fingerprint("GET", "/questions", url.Values{"page": {"1"}, "topic": {"go"}}, nil),
			equal: true,
		},
		{
			name:  "json key order is irrelevant",
			a:     Fingerprint("POST", "/submissions", nil, []byte(`{"b":1,"a":{"y":2,"x":3}}`)),
			b:     Fingerprint("POST", "/submissions", nil, []byte(`{ "a": {"x":3,"y":2}, "b": 1 }`)),
			equal: true,
		},
		{
			name:  "method distinguishes",
			a:     Fingerprint("GET", "/candidates", nil, nil),
			b:     Fingerprint("DELETE", "/candidates", nil, nil),
			equal: false,
		},
		{
			name:  "body values distinguish",
			a:     Fingerprint("POST", "/submissions", nil, []byte(`{"a":1}`)),
			b:     Fingerprint("POST", "/submissions", nil, []byte(`{"a":2}`)),
			equal: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.a == tt.b) != tt.equal {
				t.Fatalf("fingerprints %q and %q: equal=%v, want %v", tt.a, tt.b, tt.a == tt.b, tt.equal)
			}
		})
	}
}

func TestFingerprintFormat(t *testing.T) {
	got := Fingerprint("get", "/topics", url.Values{"limit": {"10"}}, nil)
	want := "GET:/topics:limit=10:"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

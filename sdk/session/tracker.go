package session

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Handle is the cancellation handle of one tracked request.
type Handle struct {
	cancel context.CancelCauseFunc
}

// Cancel aborts the request with the given cause.
func (h *Handle) Cancel(cause error) {
	if h == nil || h.cancel == nil {
		return
	}
	h.cancel(cause)
}

// Tracker holds at most one in-flight request per fingerprint. Starting a request
// whose fingerprint is already pending cancels the older one.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*Handle
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{pending: make(map[string]*Handle)}
}

// Begin registers a request and returns the context it must run under. A prior
// request with the same fingerprint is cancelled with ErrSuperseded.
func (t *Tracker) Begin(parent context.Context, fingerprint string) (context.Context, *Handle) {
	ctx, cancel := context.WithCancelCause(parent)
	handle := &Handle{cancel: cancel}

	t.mu.Lock()
	if t.pending == nil {
		t.pending = make(map[string]*Handle)
	}
	prev := t.pending[fingerprint]
	t.pending[fingerprint] = handle
	t.mu.Unlock()

	if prev != nil {
		prev.Cancel(ErrSuperseded)
	}
	return ctx, handle
}

// End removes the entry for fingerprint if it still belongs to handle and releases
// the handle's context. The caller must have finished reading the response.
func (t *Tracker) End(fingerprint string, handle *Handle) {
	if handle == nil {
		return
	}
	t.mu.Lock()
	if t.pending[fingerprint] == handle {
		delete(t.pending, fingerprint)
	}
	t.mu.Unlock()
	handle.Cancel(nil)
}

// CancelAll aborts every pending request and empties the tracker.
func (t *Tracker) CancelAll() {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]*Handle)
	t.mu.Unlock()

	for _, handle := range pending {
		handle.Cancel(ErrCancelled)
	}
}

// Len reports the number of pending requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Fingerprint identifies a logical request as METHOD:url:query:body. Query
// parameters are sorted and JSON bodies compacted with sorted keys, so the same
// request built in a different order yields the same fingerprint.
func Fingerprint(method, target string, query url.Values, body []byte) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(':')
	b.WriteString(target)
	b.WriteByte(':')
	if len(query) > 0 {
		b.WriteString(query.Encode())
	}
	b.WriteByte(':')
	b.Write(canonicalBody(body))
	return b.String()
}

func canonicalBody(body []byte) []byte {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return body
	}
	sorted := pretty.PrettyOptions(body, &pretty.Options{SortKeys: true})
	return pretty.Ugly(sorted)
}

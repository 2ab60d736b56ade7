// Package virtuallist computes which rows of a long, variable-height list intersect
// a viewport, so only those rows need to be rendered.
package virtuallist

import (
	"math"
	"sort"
	"sync"
)

const (
	// DefaultOverscan is the number of extra rows kept on each side of the viewport.
	DefaultOverscan = 5
	// measureEpsilon is the smallest height change that invalidates offsets.
	measureEpsilon = 0.5
)

// Window is an inclusive index range. It is empty when End < Start.
type Window struct {
	Start int
	End   int
}

// Empty reports whether the window selects no rows.
func (w Window) Empty() bool { return w.End < w.Start }

// Len is the number of rows in the window.
func (w Window) Len() int {
	if w.Empty() {
		return 0
	}
	return w.End - w.Start + 1
}

// Placement positions one row.
type Placement struct {
	Index  int
	Top    float64
	Height float64
}

// List is safe for concurrent use.
type List struct {
	mu       sync.Mutex
	estimate float64
	overscan int
	heights  []float64
	offsets  []float64 // offsets[i] is the top of row i; offsets[n] is the total height
	dirty    bool
}

// New builds a list of count rows, each initially estimate tall. A negative
// overscan selects DefaultOverscan.
func New(count int, estimate float64, overscan int) *List {
	if count < 0 {
		count = 0
	}
	if estimate <= 0 {
		estimate = 1
	}
	if overscan < 0 {
		overscan = DefaultOverscan
	}
	l := &List{estimate: estimate, overscan: overscan}
	l.heights = make([]float64, count)
	for i := range l.heights {
		l.heights[i] = estimate
	}
	l.dirty = true
	return l
}

// Count returns the number of rows.
func (l *List) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.heights)
}

// SetCount resizes the list. Measured heights of retained rows are kept and new
// rows start at the estimate.
func (l *List) SetCount(count int) {
	if count < 0 {
		count = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if count == len(l.heights) {
		return
	}
	if count < len(l.heights) {
		l.heights = l.heights[:count]
	} else {
		for len(l.heights) < count {
			l.heights = append(l.heights, l.estimate)
		}
	}
	l.dirty = true
}

// Measure records the rendered height of a row. It reports whether the stored
// height changed, which happens only beyond a half-pixel difference.
func (l *List) Measure(index int, height float64) bool {
	if height < 0 || math.IsNaN(height) || math.IsInf(height, 0) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.heights) {
		return false
	}
	if math.Abs(l.heights[index]-height) <= measureEpsilon {
		return false
	}
	l.heights[index] = height
	l.dirty = true
	return true
}

// Height returns the current height of a row.
func (l *List) Height(index int) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.heights) {
		return 0
	}
	return l.heights[index]
}

// Offset returns the top of row index; Offset(Count()) is the total height.
func (l *List) Offset(index int) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rebuildLocked()
	if index <= 0 {
		return 0
	}
	if index >= len(l.offsets) {
		return l.offsets[len(l.offsets)-1]
	}
	return l.offsets[index]
}

// TotalHeight is the sum of all row heights.
func (l *List) TotalHeight() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rebuildLocked()
	return l.offsets[len(l.offsets)-1]
}

// Window returns the rows intersecting
// [scrollTop - overscan*estimate, scrollTop + viewport + overscan*estimate].
func (l *List) Window(scrollTop, viewport float64) Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.windowLocked(scrollTop, viewport)
}

// Visible returns the placements of every row in the window.
func (l *List) Visible(scrollTop, viewport float64) []Placement {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.windowLocked(scrollTop, viewport)
	out := make([]Placement, 0, w.Len())
	for i := w.Start; i <= w.End; i++ {
		out = append(out, Placement{Index: i, Top: l.offsets[i], Height: l.heights[i]})
	}
	return out
}

// Render calls fn for every placement in the window, top to bottom. fn runs
// without the list lock held, so it may call Measure.
func (l *List) Render(scrollTop, viewport float64, fn func(Placement)) {
	for _, p := range l.Visible(scrollTop, viewport) {
		fn(p)
	}
}

func (l *List) windowLocked(scrollTop, viewport float64) Window {
	n := len(l.heights)
	if n == 0 {
		return Window{Start: 0, End: -1}
	}
	l.rebuildLocked()
	if scrollTop < 0 {
		scrollTop = 0
	}
	if viewport < 0 {
		viewport = 0
	}
	pad := float64(l.overscan) * l.estimate
	lo := scrollTop - pad
	hi := scrollTop + viewport + pad

	// First row whose bottom is below lo, last row whose top is above hi.
	start := sort.Search(n, func(i int) bool { return l.offsets[i+1] > lo })
	end := sort.Search(n, func(i int) bool { return l.offsets[i] >= hi }) - 1

	if start > n-1 {
		start = n - 1
	}
	if end < start {
		end = start
	}
	if end > n-1 {
		end = n - 1
	}
	return Window{Start: start, End: end}
}

func (l *List) rebuildLocked() {
	if !l.dirty && len(l.offsets) == len(l.heights)+1 {
		return
	}
	if cap(l.offsets) < len(l.heights)+1 {
		l.offsets = make([]float64, len(l.heights)+1)
	} else {
		l.offsets = l.offsets[:len(l.heights)+1]
	}
	l.offsets[0] = 0
	for i, h := range l.heights {
		l.offsets[i+1] = l.offsets[i] + h
	}
	l.dirty = false
}

package usecase

import (
	"strings"
	"sync"
)

const defaultRevisionThreshold = 0.3

// transcriptReconciler merges the provider's accumulative transcript
// fragments into one continuous utterance. The provider nominally
// resends the whole utterance in every fragment, but silently drops its
// buffer prefix past an undocumented length and occasionally rewrites
// the tail of what it already sent, so naive concatenation duplicates
// text and naive replacement loses it.
type transcriptReconciler struct {
	mu          sync.Mutex
	accumulated string
	prev        string
	carryover   string
	threshold   float64
}

// newTranscriptReconciler starts a fresh per-session transcript.
// carryover is the final raw fragment of the previous session; the
// provider's text conditioning can leak it into the first fragment of
// the next session, where it must be stripped.
func newTranscriptReconciler(carryover string, threshold float64) *transcriptReconciler {
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultRevisionThreshold
	}
	return &transcriptReconciler{carryover: carryover, threshold: threshold}
}

// Add folds one raw fragment into the transcript. It reports whether
// the fragment changed the transcript; whitespace-only fragments are
// ignored without touching any state.
func (r *transcriptReconciler) Add(cur string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(cur) == "" {
		return false
	}

	if r.prev == "" {
		cur = r.stripCarryover(cur)
		if strings.TrimSpace(cur) == "" {
			return false
		}
		r.accumulated = cur
		r.prev = cur
		return true
	}

	if strings.HasPrefix(cur, r.prev) {
		r.accumulated += cur[len(r.prev):]
		r.prev = cur
		return true
	}

	shared := commonPrefixLen(r.prev, cur)
	if float64(shared) > r.threshold*float64(len(r.prev)) {
		// The provider rewrote the tail of the previous fragment.
		// The accumulated text always ends with prev, so cutting
		// len(prev)-shared bytes lands exactly on the shared prefix.
		r.accumulated = r.accumulated[:len(r.accumulated)-(len(r.prev)-shared)] + cur[shared:]
	} else {
		// The provider's buffer overflowed and dropped its prefix;
		// the fragment is a continuation, not a correction.
		r.accumulated += " " + cur
	}
	r.prev = cur
	return true
}

// Raw returns the reconciled transcript so far.
func (r *transcriptReconciler) Raw() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.TrimSpace(r.accumulated)
}

// LastFragment returns the most recent raw fragment, kept across
// sessions so the next one can strip leaked conditioning text.
func (r *transcriptReconciler) LastFragment() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prev
}

func (r *transcriptReconciler) stripCarryover(cur string) string {
	if r.carryover == "" {
		return cur
	}
	if strings.HasPrefix(cur, r.carryover) {
		return strings.TrimLeft(cur[len(r.carryover):], " ")
	}
	return cur
}

func commonPrefixLen(a, b string) int {
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	for i := 0; i < limit; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return limit
}

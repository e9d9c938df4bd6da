package usecase

import (
	"fmt"
	"sync"

	"github.com/EimisPacheco/pixie/internal/domain"
	"github.com/EimisPacheco/pixie/internal/metrics"
	"github.com/EimisPacheco/pixie/internal/ports"
)

// playbackQueue buffers agent speech chunks and drains them through a
// single consumer, so chunks play strictly in arrival order. The queue
// is unbounded: the provider delivers speech faster than realtime and
// the total per-reply volume is small.
type playbackQueue struct {
	sink    ports.AudioSink
	events  ports.EventSink
	metrics *metrics.Metrics

	mu      sync.Mutex
	cond    *sync.Cond
	pending [][]byte
	playing bool
	closed  bool

	errOnce   sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func newPlaybackQueue(sink ports.AudioSink, events ports.EventSink, m *metrics.Metrics) *playbackQueue {
	q := &playbackQueue{
		sink:    sink,
		events:  events,
		metrics: m,
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.consume()
	return q
}

// Enqueue adds one PCM chunk for playback. It never blocks.
func (q *playbackQueue) Enqueue(pcm []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, pcm)
	q.mu.Unlock()
	q.cond.Signal()
	q.metrics.RecordPlaybackFrame()
}

// Speaking reports whether agent audio is queued or mid-write.
func (q *playbackQueue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing || len(q.pending) > 0
}

// Flush drops everything still queued; used when the user interrupts
// the agent mid-reply.
func (q *playbackQueue) Flush() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
	q.metrics.RecordPlaybackFlush()
}

// Close stops the consumer, discards queued chunks, and closes the
// sink. Safe to call more than once.
func (q *playbackQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	q.mu.Unlock()
	q.cond.Signal()
	<-q.done

	var err error
	q.closeOnce.Do(func() { err = q.sink.Close() })
	return err
}

func (q *playbackQueue) consume() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		chunk := q.pending[0]
		q.pending = q.pending[1:]
		q.playing = true
		q.mu.Unlock()

		err := q.sink.Write(chunk)

		q.mu.Lock()
		q.playing = false
		if err != nil {
			// A dead sink stays dead; stop consuming and let the
			// session continue without playback.
			q.closed = true
			q.pending = nil
			q.mu.Unlock()
			q.errOnce.Do(func() {
				q.events.SessionError(domain.ErrorCodePlayback, fmt.Sprintf("agent audio playback failed: %v", err))
			})
			return
		}
		q.mu.Unlock()
	}
}

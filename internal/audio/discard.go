package audio

import (
	"context"

	"github.com/EimisPacheco/pixie/internal/ports"
)

// DiscardPlayer opens sinks that swallow agent audio. It stands in for
// the ffplay player when playback is disabled, so the rest of the
// session pipeline keeps its speaking-state bookkeeping without a child
// process.
type DiscardPlayer struct{}

var _ ports.AudioPlayer = DiscardPlayer{}

func NewDiscardPlayer() DiscardPlayer {
	return DiscardPlayer{}
}

func (DiscardPlayer) Open(ctx context.Context, _ ports.PlaybackConfig) (ports.AudioSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return discardSink{}, nil
}

type discardSink struct{}

func (discardSink) Write(_ []byte) error { return nil }

func (discardSink) Close() error { return nil }

package audio

import (
	"context"
	"testing"

	"github.com/EimisPacheco/pixie/internal/ports"
)

func TestDiscardPlayerSwallowsAudio(t *testing.T) {
	t.Parallel()

	sink, err := NewDiscardPlayer().Open(context.Background(), ports.PlaybackConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if err := sink.Write([]byte("pcm")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestDiscardPlayerHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewDiscardPlayer().Open(ctx, ports.PlaybackConfig{}); err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}

package usecase

import (
	"errors"
	"fmt"
	"io"

	"github.com/EimisPacheco/pixie/internal/domain"
	"github.com/EimisPacheco/pixie/internal/metrics"
	"github.com/EimisPacheco/pixie/internal/ports"
)

// pumpAudioFrames moves microphone PCM into the conversation stream
// until capture ends. Frames are dropped while the agent is speaking
// and never sent once the session starts closing.
func pumpAudioFrames(
	active *activeSession,
	chunkSize int,
	events ports.EventSink,
	m *metrics.Metrics,
) {
	defer close(active.audioDone)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := active.audio.Read(buf)
		if n > 0 {
			switch {
			case active.stopped():
				return
			case active.speaking():
				m.RecordFrameDropped("agent_speaking")
			default:
				if sendErr := active.stream.SendAudio(buf[:n]); sendErr != nil {
					if !active.stopped() {
						events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
					}
					return
				}
				m.RecordFrameForwarded(n)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !active.stopped() {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

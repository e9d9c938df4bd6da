// Package notify renders session events for the terminal. It is the
// daemon's operator surface: lifecycle messages, live transcripts, and
// agent replies go to a writer, diagnostics go to the logger.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/EimisPacheco/pixie/internal/domain"
	"github.com/EimisPacheco/pixie/internal/ports"
)

// ConsoleSink implements ports.EventSink on top of a writer.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
	log *slog.Logger
}

var _ ports.EventSink = (*ConsoleSink)(nil)

func NewConsoleSink(out io.Writer, log *slog.Logger) *ConsoleSink {
	if log == nil {
		log = slog.Default()
	}
	return &ConsoleSink{out: out, log: log}
}

func (s *ConsoleSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.log.Debug("session state changed", "state", string(state), "reason", string(reason))
	if msg := stateMessage(reason); msg != "" {
		s.printf("-- %s\n", msg)
	}
}

func (s *ConsoleSink) PartialTranscript(text string) {
	s.printf("   %s\n", text)
}

func (s *ConsoleSink) AgentResponse(text string) {
	s.printf("agent: %s\n", text)
}

func (s *ConsoleSink) FinalTranscript(result domain.StopResult) {
	if result.FinalTranscript == "" {
		return
	}
	s.printf("\n%s\n", result.FinalTranscript)
}

func (s *ConsoleSink) SessionError(code domain.ErrorCode, detail string) {
	s.log.Error("session error", "code", string(code), "detail", detail)
	msg := errorMessage(code)
	if detail != "" {
		s.printf("!! %s: %s\n", msg, detail)
		return
	}
	s.printf("!! %s\n", msg)
}

func (s *ConsoleSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func stateMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonStartRequested:
		return "Connecting..."
	case domain.SessionReasonSessionReplaced:
		return "Previous session discarded"
	case domain.SessionReasonConversationReady:
		return "Listening"
	case domain.SessionReasonStopRequested:
		return "Stopping..."
	case domain.SessionReasonTranscriptDelivered:
		return "Transcript copied to clipboard"
	case domain.SessionReasonTranscriptClipboardFailed:
		return "Transcript ready (clipboard write failed)"
	case domain.SessionReasonNoTranscript:
		return "No transcript captured"
	case domain.SessionReasonSessionDiscarded:
		return "Session discarded"
	case domain.SessionReasonSessionEnded:
		return "Conversation ended"
	case domain.SessionReasonTransportFailed:
		return "Connection to the voice service failed"
	case domain.SessionReasonRulesFailed:
		return "Rules processing failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode) string {
	switch code {
	case domain.ErrorCodeConfig:
		return "Configuration problem"
	case domain.ErrorCodeMicrophone:
		return "Microphone start failed"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeTransport:
		return "Voice service error"
	case domain.ErrorCodeTool:
		return "Tool execution failed"
	case domain.ErrorCodeTextTarget:
		return "Text target write failed"
	case domain.ErrorCodePlayback:
		return "Audio playback issue"
	case domain.ErrorCodeRules:
		return "Rules processing failed"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	default:
		return "Unexpected error"
	}
}

package ports

import (
	"context"
	"errors"
	"io"

	"github.com/EimisPacheco/pixie/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session. Read yields raw PCM; Stop
// releases the device and guarantees no further frames after it returns.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// PlaybackConfig describes how agent speech should be rendered.
type PlaybackConfig struct {
	SampleRate int
	Channels   int
}

// AudioSink renders one PCM chunk at a time. Write blocks until the
// chunk has been handed to the output device.
type AudioSink interface {
	Write(pcm []byte) error
	Close() error
}

// AudioPlayer opens playback sinks.
type AudioPlayer interface {
	Open(ctx context.Context, cfg PlaybackConfig) (AudioSink, error)
}

// ConversationConfig carries per-session provider settings. Secrets are
// read at session start and never stored on the provider.
type ConversationConfig struct {
	APIKey  string
	AgentID string
}

// ConversationStream is an active provider socket session. Events is
// closed when the socket ends; Wait reports the terminal error, nil for
// a normal close.
type ConversationStream interface {
	SendAudio(pcm []byte) error
	SendToolResult(result domain.ToolResult) error
	Events() <-chan domain.ConversationEvent
	Wait() error
	Close() error
}

// ConversationProvider starts conversation sessions.
type ConversationProvider interface {
	StartConversation(ctx context.Context, cfg ConversationConfig) (ConversationStream, error)
}

// TextTarget is the text field under voice control. Read returns the
// empty string when no candidate location exists yet.
type TextTarget interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string, appendText bool) error
}

// TextGenerator produces rewritten text from a system instruction and a
// user message.
type TextGenerator interface {
	Generate(ctx context.Context, systemInstruction string, userMessage string) (string, error)
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// Names of the three secrets the daemon needs.
const (
	SecretVoiceAPIKey      = "elevenlabs_api_key"
	SecretAgentID          = "agent_id"
	SecretGenerativeAPIKey = "gemini_api_key"
)

// ErrSecretNotFound reports a secret held by no store.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore persists the operator's API credentials.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// EventSink emits backend state/events to the operator surface.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(text string)
	AgentResponse(text string)
	FinalTranscript(result domain.StopResult)
	SessionError(code domain.ErrorCode, detail string)
}

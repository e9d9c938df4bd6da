package domain

import "time"

// SessionMode selects what the voice session does with what it hears.
type SessionMode string

const (
	ModeDictation SessionMode = "dictation"
	ModeAgent     SessionMode = "agent"
)

// SessionState models the session lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateConnecting SessionState = "connecting"
	SessionStateOpen       SessionState = "open"
	SessionStateClosing    SessionState = "closing"
	SessionStateClosed     SessionState = "closed"
	SessionStateError      SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonStartRequested            SessionStateReason = "start_requested"
	SessionReasonSessionReplaced           SessionStateReason = "session_replaced"
	SessionReasonConversationReady         SessionStateReason = "conversation_ready"
	SessionReasonStopRequested             SessionStateReason = "stop_requested"
	SessionReasonTranscriptDelivered       SessionStateReason = "transcript_delivered"
	SessionReasonTranscriptClipboardFailed SessionStateReason = "transcript_clipboard_failed"
	SessionReasonNoTranscript              SessionStateReason = "no_transcript"
	SessionReasonSessionDiscarded          SessionStateReason = "session_discarded"
	SessionReasonSessionEnded              SessionStateReason = "session_ended"
	SessionReasonTransportFailed           SessionStateReason = "transport_failed"
	SessionReasonRulesFailed               SessionStateReason = "rules_failed"
)

// ErrorCode identifies non-fatal and session-ending backend errors.
type ErrorCode string

const (
	ErrorCodeConfig      ErrorCode = "config"
	ErrorCodeMicrophone  ErrorCode = "microphone"
	ErrorCodeAudioStream ErrorCode = "audio_stream"
	ErrorCodeAudioStop   ErrorCode = "audio_stop"
	ErrorCodeTransport   ErrorCode = "transport"
	ErrorCodeTool        ErrorCode = "tool"
	ErrorCodeTextTarget  ErrorCode = "text_target"
	ErrorCodePlayback    ErrorCode = "playback"
	ErrorCodeRules       ErrorCode = "rules"
	ErrorCodeClipboard   ErrorCode = "clipboard"
)

// TranscriptWord carries per-word timing when the provider supplies it.
type TranscriptWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptFragment is one incremental transcript update. The text is
// accumulative: each fragment nominally repeats the utterance so far.
type TranscriptFragment struct {
	Text    string           `json:"text"`
	IsFinal bool             `json:"isFinal"`
	Words   []TranscriptWord `json:"words,omitempty"`
}

// ToolInvocation is a provider request to run a named local action.
type ToolInvocation struct {
	Name       string         `json:"name"`
	CallID     string         `json:"callId"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ToolResult is produced exactly once per accepted invocation.
type ToolResult struct {
	CallID  string `json:"callId"`
	Payload string `json:"payload"`
	Success bool   `json:"success"`
}

// StopResult is returned once a session is stopped and finalized.
type StopResult struct {
	Mode            SessionMode `json:"mode"`
	RawTranscript   string      `json:"rawTranscript"`
	FinalTranscript string      `json:"finalTranscript"`
	Copied          bool        `json:"copied"`
}

// Status summarizes the current runtime status.
type Status struct {
	SessionID      string       `json:"sessionId,omitempty"`
	Mode           SessionMode  `json:"mode,omitempty"`
	State          SessionState `json:"state"`
	Active         bool         `json:"active"`
	ConversationID string       `json:"conversationId,omitempty"`
	StartedAt      time.Time    `json:"startedAt,omitempty"`
}

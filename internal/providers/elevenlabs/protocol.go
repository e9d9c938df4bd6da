package elevenlabs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Server frame type discriminators.
const (
	typeConversationInitiationMetadata = "conversation_initiation_metadata"
	typeAudio                          = "audio"
	typeUserTranscript                 = "user_transcript"
	typeAgentResponse                  = "agent_response"
	typeClientToolCall                 = "client_tool_call"
	typePing                           = "ping"
	typeInterruption                   = "interruption"
)

// ConversationInitiationMetadata is the provider's handshake frame.
type ConversationInitiationMetadata struct {
	Type  string                              `json:"type"`
	Event ConversationInitiationMetadataEvent `json:"conversation_initiation_metadata_event"`
}

type ConversationInitiationMetadataEvent struct {
	ConversationID         string `json:"conversation_id"`
	AgentOutputAudioFormat string `json:"agent_output_audio_format"`
	UserInputAudioFormat   string `json:"user_input_audio_format"`
}

// AudioMessage carries one base64 PCM chunk of agent speech.
type AudioMessage struct {
	Type  string     `json:"type"`
	Event AudioEvent `json:"audio_event"`
}

type AudioEvent struct {
	AudioBase64 string `json:"audio_base_64"`
	EventID     int    `json:"event_id"`
}

// UserTranscriptMessage carries one transcript fragment of user speech.
type UserTranscriptMessage struct {
	Type  string                 `json:"type"`
	Event UserTranscriptionEvent `json:"user_transcription_event"`
}

type UserTranscriptionEvent struct {
	UserTranscript string           `json:"user_transcript"`
	IsFinal        bool             `json:"is_final"`
	Words          []TranscriptWord `json:"words,omitempty"`
}

type TranscriptWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AgentResponseMessage carries the text the agent speaks next.
type AgentResponseMessage struct {
	Type  string             `json:"type"`
	Event AgentResponseEvent `json:"agent_response_event"`
}

type AgentResponseEvent struct {
	AgentResponse string `json:"agent_response"`
}

// ClientToolCallMessage asks the client to execute a named tool.
type ClientToolCallMessage struct {
	Type     string         `json:"type"`
	ToolCall ClientToolCall `json:"client_tool_call"`
}

type ClientToolCall struct {
	ToolName   string         `json:"tool_name"`
	ToolCallID string         `json:"tool_call_id"`
	Parameters map[string]any `json:"parameters"`
}

// PingMessage must be answered with a Pong carrying the same event id or
// the provider terminates the connection.
type PingMessage struct {
	Type  string    `json:"type"`
	Event PingEvent `json:"ping_event"`
}

type PingEvent struct {
	EventID int  `json:"event_id"`
	PingMS  *int `json:"ping_ms,omitempty"`
}

// InterruptionMessage reports the user talking over the agent.
type InterruptionMessage struct {
	Type  string            `json:"type"`
	Event InterruptionEvent `json:"interruption_event"`
}

type InterruptionEvent struct {
	EventID int `json:"event_id"`
}

// UnknownMessage preserves frames whose type discriminator is not
// recognized. They are logged and dropped, never fatal.
type UnknownMessage struct {
	Type string
	Raw  json.RawMessage
}

// UserAudioChunk is the outbound audio frame. It carries no type
// discriminator on the wire; the bare key identifies it.
type UserAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

// Pong answers a PingMessage, echoing its event id.
type Pong struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id"`
}

// ClientToolResult returns a tool outcome to the provider.
type ClientToolResult struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Result     string `json:"result"`
	IsError    bool   `json:"is_error"`
}

// ConversationInitiationClientData opens the conversation after dialing.
type ConversationInitiationClientData struct {
	Type             string                      `json:"type"`
	ConfigOverride   *ConversationConfigOverride `json:"conversation_config_override,omitempty"`
	DynamicVariables map[string]string           `json:"dynamic_variables,omitempty"`
}

type ConversationConfigOverride struct {
	Agent *AgentOverride `json:"agent,omitempty"`
}

type AgentOverride struct {
	Language string `json:"language,omitempty"`
}

// DecodeServerMessage parses one inbound text frame into its typed form.
// Frames with an unrecognized type decode to UnknownMessage; only
// malformed JSON is an error.
func DecodeServerMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode frame envelope: %w", err)
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, fmt.Errorf("frame is missing a type discriminator")
	}

	switch typ {
	case typeConversationInitiationMetadata:
		var msg ConversationInitiationMetadata
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s frame: %w", typ, err)
		}
		return msg, nil
	case typeAudio:
		var msg AudioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s frame: %w", typ, err)
		}
		return msg, nil
	case typeUserTranscript:
		var msg UserTranscriptMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s frame: %w", typ, err)
		}
		return msg, nil
	case typeAgentResponse:
		var msg AgentResponseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s frame: %w", typ, err)
		}
		return msg, nil
	case typeClientToolCall:
		var msg ClientToolCallMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s frame: %w", typ, err)
		}
		return msg, nil
	case typePing:
		var msg PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s frame: %w", typ, err)
		}
		return msg, nil
	case typeInterruption:
		var msg InterruptionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s frame: %w", typ, err)
		}
		return msg, nil
	default:
		return UnknownMessage{Type: typ, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

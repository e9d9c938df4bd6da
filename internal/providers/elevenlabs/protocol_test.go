package elevenlabs

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeServerMessageInitiationMetadata(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"type":"conversation_initiation_metadata",
		"conversation_initiation_metadata_event":{
			"conversation_id":"conv_123",
			"agent_output_audio_format":"pcm_16000",
			"user_input_audio_format":"pcm_16000"
		}
	}`)

	msg, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("DecodeServerMessage() error = %v", err)
	}
	meta, ok := msg.(ConversationInitiationMetadata)
	if !ok {
		t.Fatalf("decoded type = %T, want ConversationInitiationMetadata", msg)
	}
	if meta.Event.ConversationID != "conv_123" {
		t.Fatalf("conversation_id=%q", meta.Event.ConversationID)
	}
	if meta.Event.AgentOutputAudioFormat != "pcm_16000" {
		t.Fatalf("agent_output_audio_format=%q", meta.Event.AgentOutputAudioFormat)
	}
}

func TestDecodeServerMessageAudio(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"type":"audio","audio_event":{"audio_base_64":"aGk=","event_id":4}}`)

	msg, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("DecodeServerMessage() error = %v", err)
	}
	audio, ok := msg.(AudioMessage)
	if !ok {
		t.Fatalf("decoded type = %T, want AudioMessage", msg)
	}
	if audio.Event.AudioBase64 != "aGk=" || audio.Event.EventID != 4 {
		t.Fatalf("audio event = %+v", audio.Event)
	}
}

func TestDecodeServerMessageUserTranscript(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"type":"user_transcript",
		"user_transcription_event":{
			"user_transcript":"turn on the light",
			"is_final":true,
			"words":[{"text":"turn","start":0.1,"end":0.3}]
		}
	}`)

	msg, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("DecodeServerMessage() error = %v", err)
	}
	transcript := msg.(UserTranscriptMessage)
	if transcript.Event.UserTranscript != "turn on the light" {
		t.Fatalf("user_transcript=%q", transcript.Event.UserTranscript)
	}
	if !transcript.Event.IsFinal {
		t.Fatalf("expected is_final")
	}
	if len(transcript.Event.Words) != 1 || transcript.Event.Words[0].Text != "turn" {
		t.Fatalf("words=%+v", transcript.Event.Words)
	}
}

func TestDecodeServerMessageClientToolCall(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"type":"client_tool_call",
		"client_tool_call":{
			"tool_name":"improve_prompt",
			"tool_call_id":"call_9",
			"parameters":{"guidance":"shorter"}
		}
	}`)

	msg, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("DecodeServerMessage() error = %v", err)
	}
	call := msg.(ClientToolCallMessage)
	if call.ToolCall.ToolName != "improve_prompt" || call.ToolCall.ToolCallID != "call_9" {
		t.Fatalf("tool call = %+v", call.ToolCall)
	}
	if call.ToolCall.Parameters["guidance"] != "shorter" {
		t.Fatalf("parameters = %+v", call.ToolCall.Parameters)
	}
}

func TestDecodeServerMessagePingAndInterruption(t *testing.T) {
	t.Parallel()

	msg, err := DecodeServerMessage([]byte(`{"type":"ping","ping_event":{"event_id":17}}`))
	if err != nil {
		t.Fatalf("DecodeServerMessage(ping) error = %v", err)
	}
	ping := msg.(PingMessage)
	if ping.Event.EventID != 17 {
		t.Fatalf("ping event_id=%d", ping.Event.EventID)
	}

	msg, err = DecodeServerMessage([]byte(`{"type":"interruption","interruption_event":{"event_id":18}}`))
	if err != nil {
		t.Fatalf("DecodeServerMessage(interruption) error = %v", err)
	}
	interruption := msg.(InterruptionMessage)
	if interruption.Event.EventID != 18 {
		t.Fatalf("interruption event_id=%d", interruption.Event.EventID)
	}
}

func TestDecodeServerMessageUnknownType(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"type":"vad_score","vad_score_event":{"vad_score":0.9}}`)

	msg, err := DecodeServerMessage(raw)
	if err != nil {
		t.Fatalf("DecodeServerMessage() error = %v", err)
	}
	unknown, ok := msg.(UnknownMessage)
	if !ok {
		t.Fatalf("decoded type = %T, want UnknownMessage", msg)
	}
	if unknown.Type != "vad_score" {
		t.Fatalf("unknown type=%q", unknown.Type)
	}
	if !strings.Contains(string(unknown.Raw), "vad_score_event") {
		t.Fatalf("raw payload not preserved: %s", unknown.Raw)
	}
}

func TestDecodeServerMessageRejectsMalformed(t *testing.T) {
	t.Parallel()

	if _, err := DecodeServerMessage([]byte(`{not json`)); err == nil {
		t.Fatalf("expected malformed frame error")
	}
	if _, err := DecodeServerMessage([]byte(`{"event":"no type"}`)); err == nil {
		t.Fatalf("expected missing type error")
	}
}

func TestUserAudioChunkHasNoTypeField(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(UserAudioChunk{UserAudioChunk: "cGNt"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(payload) != `{"user_audio_chunk":"cGNt"}` {
		t.Fatalf("unexpected wire shape: %s", payload)
	}
}

func TestPongEchoesEventID(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(Pong{Type: "pong", EventID: 17})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(payload) != `{"type":"pong","event_id":17}` {
		t.Fatalf("unexpected wire shape: %s", payload)
	}
}

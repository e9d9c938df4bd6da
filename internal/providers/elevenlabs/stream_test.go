package elevenlabs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/EimisPacheco/pixie/internal/domain"
	"github.com/EimisPacheco/pixie/internal/ports"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	provider := NewProvider(Config{}, nil)
	if provider.cfg.APIBaseURL != defaultAPIBaseURL {
		t.Fatalf("unexpected default base URL: %q", provider.cfg.APIBaseURL)
	}
	if provider.logger == nil {
		t.Fatalf("expected fallback logger")
	}
}

func TestStartConversationRequiresAPIKey(t *testing.T) {
	t.Parallel()

	provider := NewProvider(Config{}, nil)
	_, err := provider.StartConversation(context.Background(), ports.ConversationConfig{AgentID: "agent"})
	if err == nil {
		t.Fatalf("expected missing API key error")
	}
}

func TestStartConversationRequiresAgentID(t *testing.T) {
	t.Parallel()

	provider := NewProvider(Config{}, nil)
	_, err := provider.StartConversation(context.Background(), ports.ConversationConfig{APIKey: "key"})
	if err == nil {
		t.Fatalf("expected missing agent identifier error")
	}
}

func TestBuildConversationURL(t *testing.T) {
	t.Parallel()

	got, err := buildConversationURL("https://api.elevenlabs.io", "agent_42")
	if err != nil {
		t.Fatalf("buildConversationURL failed: %v", err)
	}
	want := "wss://api.elevenlabs.io/v1/convai/conversation?agent_id=agent_42"
	if got != want {
		t.Fatalf("unexpected URL: %q want %q", got, want)
	}
}

func TestBuildConversationURLTrimsSlashAndKeepsPlainWS(t *testing.T) {
	t.Parallel()

	got, err := buildConversationURL("http://127.0.0.1:9999/", "a")
	if err != nil {
		t.Fatalf("buildConversationURL failed: %v", err)
	}
	want := "ws://127.0.0.1:9999/v1/convai/conversation?agent_id=a"
	if got != want {
		t.Fatalf("unexpected URL: %q want %q", got, want)
	}
}

func TestBuildConversationURLRejectsInvalidBase(t *testing.T) {
	t.Parallel()

	if _, err := buildConversationURL("://bad", "a"); err == nil {
		t.Fatalf("expected invalid base URL error")
	}
}

func TestSendAudioAfterClose(t *testing.T) {
	t.Parallel()

	session := &conversationSession{sendClosed: true}
	if err := session.SendAudio([]byte{1, 2}); err == nil {
		t.Fatalf("expected closed session error")
	}
}

func TestCloseSendIdempotent(t *testing.T) {
	t.Parallel()

	session := &conversationSession{outbound: make(chan any, 1)}
	session.closeSend()
	session.closeSend()

	if _, open := <-session.outbound; open {
		t.Fatalf("outbound channel should be closed")
	}
}

func TestSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	session := &conversationSession{}
	session.setErr(nil)
	session.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure})
	session.setErr(&websocket.CloseError{Code: websocket.CloseGoingAway})
	session.setErr(&websocket.CloseError{Code: websocket.CloseNoStatusReceived})

	if err := session.waitErr(); err != nil {
		t.Fatalf("clean close should not surface an error, got %v", err)
	}
}

func TestSetErrIgnoresErrorsAfterCloseBegins(t *testing.T) {
	t.Parallel()

	session := &conversationSession{}
	session.closing.Store(true)
	session.setErr(errors.New("read tcp: use of closed network connection"))

	if err := session.waitErr(); err != nil {
		t.Fatalf("teardown errors should not surface, got %v", err)
	}
}

func TestSetErrFirstWins(t *testing.T) {
	t.Parallel()

	session := &conversationSession{}
	first := errors.New("first failure")
	session.setErr(first)
	session.setErr(errors.New("second failure"))

	if err := session.waitErr(); !errors.Is(err, first) {
		t.Fatalf("expected first error to win, got %v", err)
	}
}

// TestConversationLoopback drives a full session against an in-process
// socket server shaped like the provider.
func TestConversationLoopback(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverErr := make(chan error, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverErr <- runScriptedConversation(upgrader, w, r)
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := NewProvider(Config{APIBaseURL: server.URL}, logger)

	stream, err := provider.StartConversation(context.Background(), ports.ConversationConfig{
		APIKey:  "secret-key",
		AgentID: "agent_7",
	})
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	defer stream.Close()

	if err := stream.SendAudio([]byte("hello")); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}

	event := waitEvent(t, stream.Events())
	ready, ok := event.(domain.ConversationReady)
	if !ok {
		t.Fatalf("event = %T, want ConversationReady", event)
	}
	if ready.ConversationID != "conv_loopback" {
		t.Fatalf("conversation id = %q", ready.ConversationID)
	}

	event = waitEvent(t, stream.Events())
	audio, ok := event.(domain.AgentAudio)
	if !ok {
		t.Fatalf("event = %T, want AgentAudio", event)
	}
	if string(audio.PCM) != "hi" || audio.EventID != 1 {
		t.Fatalf("agent audio = %q event_id=%d", audio.PCM, audio.EventID)
	}

	event = waitEvent(t, stream.Events())
	transcript, ok := event.(domain.UserTranscript)
	if !ok {
		t.Fatalf("event = %T, want UserTranscript", event)
	}
	if transcript.Fragment.Text != "hello world" || !transcript.Fragment.IsFinal {
		t.Fatalf("fragment = %+v", transcript.Fragment)
	}

	event = waitEvent(t, stream.Events())
	toolCall, ok := event.(domain.ToolCallRequested)
	if !ok {
		t.Fatalf("event = %T, want ToolCallRequested", event)
	}
	if toolCall.Invocation.Name != "get_text" || toolCall.Invocation.CallID != "call_1" {
		t.Fatalf("invocation = %+v", toolCall.Invocation)
	}

	err = stream.SendToolResult(domain.ToolResult{
		CallID:  toolCall.Invocation.CallID,
		Payload: "field contents",
		Success: true,
	})
	if err != nil {
		t.Fatalf("SendToolResult failed: %v", err)
	}

	event = waitEvent(t, stream.Events())
	interruption, ok := event.(domain.Interruption)
	if !ok {
		t.Fatalf("event = %T, want Interruption", event)
	}
	if interruption.EventID != 9 {
		t.Fatalf("interruption event_id=%d", interruption.EventID)
	}

	if err := waitStream(stream); err != nil {
		t.Fatalf("clean close should end without error, got %v", err)
	}
	if err := <-serverErr; err != nil {
		t.Fatalf("server script failed: %v", err)
	}
}

func runScriptedConversation(upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request) error {
	if got := r.Header.Get("xi-api-key"); got != "secret-key" {
		return errors.New("missing xi-api-key header: " + got)
	}
	if got := r.URL.Query().Get("agent_id"); got != "agent_7" {
		return errors.New("missing agent_id query: " + got)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var init map[string]any
	if err := conn.ReadJSON(&init); err != nil {
		return err
	}
	if init["type"] != "conversation_initiation_client_data" {
		return errors.New("first frame is not initiation data")
	}

	var chunk map[string]any
	if err := conn.ReadJSON(&chunk); err != nil {
		return err
	}
	if chunk["user_audio_chunk"] != "aGVsbG8=" {
		return errors.New("unexpected audio chunk payload")
	}
	if _, hasType := chunk["type"]; hasType {
		return errors.New("audio chunk must not carry a type field")
	}

	frames := []string{
		`{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"conv_loopback","agent_output_audio_format":"pcm_16000","user_input_audio_format":"pcm_16000"}}`,
		`{"type":"audio","audio_event":{"audio_base_64":"aGk=","event_id":1}}`,
		`{"type":"ping","ping_event":{"event_id":17}}`,
		`{"type":"user_transcript","user_transcription_event":{"user_transcript":"hello world","is_final":true}}`,
		`{"type":"client_tool_call","client_tool_call":{"tool_name":"get_text","tool_call_id":"call_1","parameters":{}}}`,
	}
	for _, frame := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return err
		}
	}

	var pong map[string]any
	if err := conn.ReadJSON(&pong); err != nil {
		return err
	}
	if pong["type"] != "pong" || pong["event_id"] != float64(17) {
		return errors.New("pong did not echo the ping event id")
	}

	var toolResult map[string]any
	if err := conn.ReadJSON(&toolResult); err != nil {
		return err
	}
	if toolResult["type"] != "client_tool_result" || toolResult["tool_call_id"] != "call_1" {
		return errors.New("unexpected tool result frame")
	}
	if toolResult["is_error"] != false {
		return errors.New("successful tool result must not be flagged as error")
	}

	last := `{"type":"interruption","interruption_event":{"event_id":9}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(last)); err != nil {
		return err
	}

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		return err
	}
	// Drain until the peer answers the close handshake.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func waitEvent(t *testing.T, events <-chan domain.ConversationEvent) domain.ConversationEvent {
	t.Helper()
	select {
	case event, ok := <-events:
		if !ok {
			t.Fatalf("event channel closed early")
		}
		return event
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for conversation event")
	}
	return nil
}

func waitStream(stream ports.ConversationStream) error {
	done := make(chan error, 1)
	go func() { done <- stream.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		return errors.New("timed out waiting for stream shutdown")
	}
}

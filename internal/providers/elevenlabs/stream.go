package elevenlabs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/EimisPacheco/pixie/internal/domain"
	"github.com/EimisPacheco/pixie/internal/ports"
)

const (
	defaultAPIBaseURL = "https://api.elevenlabs.io"

	closeGrace = 3 * time.Second
)

// Config controls the ElevenLabs conversation websocket.
type Config struct {
	APIBaseURL string
}

// Provider implements ports.ConversationProvider for the ElevenLabs
// conversational agent protocol.
type Provider struct {
	cfg    Config
	logger *slog.Logger
}

func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, logger: logger}
}

func (p *Provider) StartConversation(ctx context.Context, cfg ports.ConversationConfig) (ports.ConversationStream, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("voice provider API key is not configured")
	}
	if strings.TrimSpace(cfg.AgentID) == "" {
		return nil, errors.New("voice agent identifier is not configured")
	}

	wsURL, err := buildConversationURL(p.cfg.APIBaseURL, cfg.AgentID)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("xi-api-key", cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to conversation socket: %w", err)
	}

	// The writer goroutine is not running yet, so this write is safe.
	init := ConversationInitiationClientData{Type: "conversation_initiation_client_data"}
	if err := conn.WriteJSON(init); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}

	session := &conversationSession{
		conn:     conn,
		logger:   p.logger,
		events:   make(chan domain.ConversationEvent, 64),
		outbound: make(chan any, 32),
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	return session, nil
}

type conversationSession struct {
	conn   *websocket.Conn
	logger *slog.Logger

	events   chan domain.ConversationEvent
	outbound chan any
	done     chan struct{}
	stop     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closing atomic.Bool

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *conversationSession) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return s.send(UserAudioChunk{UserAudioChunk: base64.StdEncoding.EncodeToString(pcm)})
}

func (s *conversationSession) SendToolResult(result domain.ToolResult) error {
	return s.send(ClientToolResult{
		Type:       "client_tool_result",
		ToolCallID: result.CallID,
		Result:     result.Payload,
		IsError:    !result.Success,
	})
}

// send holds the read lock across the channel send so closeSend cannot
// close the outbound channel under an in-flight frame.
func (s *conversationSession) send(frame any) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("conversation is already closed")
	}

	select {
	case s.outbound <- frame:
		return nil
	case <-s.stop:
	case <-s.done:
	}
	if err := s.waitErr(); err != nil {
		return err
	}
	return errors.New("conversation closed")
}

func (s *conversationSession) Events() <-chan domain.ConversationEvent {
	return s.events
}

func (s *conversationSession) Wait() error {
	<-s.done
	return s.waitErr()
}

// Close performs a graceful shutdown with a bounded grace, then forces
// the socket shut. Safe to call from any goroutine, any number of times.
func (s *conversationSession) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		close(s.stop)
		s.closeSend()

		select {
		case <-s.done:
		case <-time.After(closeGrace):
		}
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *conversationSession) closeSend() {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.outbound)
		s.sendMu.Unlock()
	})
}

func (s *conversationSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *conversationSession) setErr(err error) {
	if err == nil {
		return
	}
	// Errors observed after we initiated the close are teardown noise.
	if s.closing.Load() {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *conversationSession) writeLoop() {
	defer s.wg.Done()

	for frame := range s.outbound {
		if err := s.conn.WriteJSON(frame); err != nil {
			s.setErr(fmt.Errorf("failed to send frame: %w", err))
			return
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		s.logger.Debug("close frame not delivered", "error", err)
	}
}

func (s *conversationSession) readLoop() {
	defer s.wg.Done()
	// Once reads end there is nothing left to send; releasing the writer
	// lets the session wind down even when the remote closed first.
	defer s.closeSend()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider frame: %w", err))
			return
		}

		msg, err := DecodeServerMessage(payload)
		if err != nil {
			s.logger.Warn("dropping undecodable provider frame", "error", err)
			continue
		}

		switch m := msg.(type) {
		case ConversationInitiationMetadata:
			s.emit(domain.ConversationReady{
				ConversationID: m.Event.ConversationID,
				AudioFormat:    m.Event.AgentOutputAudioFormat,
			})
		case AudioMessage:
			pcm, decErr := base64.StdEncoding.DecodeString(m.Event.AudioBase64)
			if decErr != nil {
				s.logger.Warn("dropping undecodable agent audio chunk", "error", decErr)
				continue
			}
			s.emit(domain.AgentAudio{PCM: pcm, EventID: m.Event.EventID})
		case UserTranscriptMessage:
			s.emit(domain.UserTranscript{Fragment: toFragment(m.Event)})
		case AgentResponseMessage:
			s.emit(domain.AgentResponse{Text: m.Event.AgentResponse})
		case ClientToolCallMessage:
			s.emit(domain.ToolCallRequested{Invocation: domain.ToolInvocation{
				Name:       m.ToolCall.ToolName,
				CallID:     m.ToolCall.ToolCallID,
				Parameters: m.ToolCall.Parameters,
			}})
		case PingMessage:
			s.pong(m.Event.EventID)
		case InterruptionMessage:
			s.emit(domain.Interruption{EventID: m.Event.EventID})
		case UnknownMessage:
			s.logger.Warn("dropping unrecognized provider frame", "frame_type", m.Type)
		}
	}
}

// pong answers inline from the read loop; the ordered outbound channel
// keeps it behind at most a handful of queued audio frames.
func (s *conversationSession) pong(eventID int) {
	_ = s.send(Pong{Type: "pong", EventID: eventID})
}

func (s *conversationSession) emit(event domain.ConversationEvent) {
	select {
	case s.events <- event:
	case <-s.stop:
	}
}

func toFragment(event UserTranscriptionEvent) domain.TranscriptFragment {
	fragment := domain.TranscriptFragment{
		Text:    event.UserTranscript,
		IsFinal: event.IsFinal,
	}
	for _, word := range event.Words {
		fragment.Words = append(fragment.Words, domain.TranscriptWord{
			Text:  word.Text,
			Start: word.Start,
			End:   word.End,
		})
	}
	return fragment
}

func buildConversationURL(base string, agentID string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = defaultAPIBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	convURL, err := url.Parse(base + "/v1/convai/conversation")
	if err != nil {
		return "", fmt.Errorf("invalid provider API base URL: %w", err)
	}

	query := convURL.Query()
	query.Set("agent_id", agentID)
	convURL.RawQuery = query.Encode()
	return convURL.String(), nil
}

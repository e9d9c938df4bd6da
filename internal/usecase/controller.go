package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EimisPacheco/pixie/internal/domain"
	"github.com/EimisPacheco/pixie/internal/metrics"
	"github.com/EimisPacheco/pixie/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active voice session")
	ErrSessionEnded    = errors.New("session already ended")
	ErrNoTranscript    = errors.New("no transcript captured")
)

// Config controls session behavior.
type Config struct {
	Audio    ports.AudioConfig
	Playback ports.PlaybackConfig

	// ChunkSize is the microphone read size in bytes.
	ChunkSize int

	// StopGrace is how long Stop waits for trailing transcripts
	// before closing the conversation.
	StopGrace time.Duration

	// RevisionThreshold tunes the reconciler's revision-vs-overflow
	// heuristic; zero means the default of 0.3.
	RevisionThreshold float64

	// DedupeLimit bounds the per-session set of seen tool call ids.
	DedupeLimit int
}

// Dependencies collects everything a SessionController drives.
type Dependencies struct {
	Audio     ports.AudioCapture
	Player    ports.AudioPlayer
	Provider  ports.ConversationProvider
	Secrets   ports.SecretStore
	Target    ports.TextTarget
	Generator ports.TextGenerator
	Rules     ports.RulesEngine
	Clipboard ports.Clipboard
	Events    ports.EventSink
	Metrics   *metrics.Metrics
}

// SessionController orchestrates voice sessions: microphone capture,
// the provider conversation socket, transcript reconciliation, tool
// dispatch, and final transcript delivery.
type SessionController struct {
	deps       Dependencies
	cfg        Config
	dispatcher *toolDispatcher
	finalizer  transcriptFinalizer

	mu      sync.Mutex
	current *activeSession

	carryMu      sync.Mutex
	lastFragment string
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	c := &SessionController{
		deps:      deps,
		cfg:       cfg,
		finalizer: newTranscriptFinalizer(deps.Rules, deps.Target, deps.Clipboard, deps.Events),
	}
	c.dispatcher = newToolDispatcher(newToolRegistry(deps.Target, deps.Generator, c.sessionActive, deps.Metrics))
	return c
}

// Start begins a new session in the given mode, replacing any session
// that is still active. Secrets are read and validated before the
// microphone is touched.
func (c *SessionController) Start(ctx context.Context, mode domain.SessionMode) error {
	var previous *activeSession
	c.mu.Lock()
	if c.current != nil {
		previous = c.current
		c.current = nil
	}
	c.mu.Unlock()

	if previous != nil {
		c.stopSession(previous)
		c.finishSession(previous, domain.SessionStateClosed, domain.SessionReasonSessionReplaced)
	}

	voiceKey, agentID, err := c.readConversationSecrets(ctx)
	if err != nil {
		c.deps.Events.SessionError(domain.ErrorCodeConfig, err.Error())
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)

	c.deps.Events.SessionStateChanged(domain.SessionStateConnecting, domain.SessionReasonStartRequested)
	stream, err := c.deps.Provider.StartConversation(sessionCtx, ports.ConversationConfig{
		APIKey:  voiceKey,
		AgentID: agentID,
	})
	if err != nil {
		cancel()
		c.deps.Events.SessionError(domain.ErrorCodeTransport, err.Error())
		return err
	}

	var playback *playbackQueue
	if mode == domain.ModeAgent {
		sink, err := c.deps.Player.Open(sessionCtx, c.cfg.Playback)
		if err != nil {
			_ = stream.Close()
			cancel()
			c.deps.Events.SessionError(domain.ErrorCodePlayback, err.Error())
			return err
		}
		playback = newPlaybackQueue(sink, c.deps.Events, c.deps.Metrics)
	}

	audioSession, err := c.deps.Audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		if playback != nil {
			_ = playback.Close()
		}
		_ = stream.Close()
		cancel()
		c.deps.Events.SessionError(domain.ErrorCodeMicrophone, err.Error())
		return err
	}

	active := &activeSession{
		id:         uuid.New(),
		mode:       mode,
		startedAt:  time.Now(),
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		playback:   playback,
		reconciler: newTranscriptReconciler(c.carryover(), c.cfg.RevisionThreshold),
		seen:       newCallIDSet(c.cfg.DedupeLimit),
		state:      domain.SessionStateConnecting,
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}

	c.mu.Lock()
	c.current = active
	c.mu.Unlock()

	go c.consumeConversationEvents(sessionCtx, active)
	go pumpAudioFrames(active, c.cfg.ChunkSize, c.deps.Events, c.deps.Metrics)

	c.deps.Metrics.RecordSessionStarted(string(mode))
	return nil
}

// Stop ends the active session gracefully and returns the finalized
// transcript.
func (c *SessionController) Stop(ctx context.Context) (domain.StopResult, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.StopResult{}, err
	}

	if err := active.audio.Stop(); err != nil {
		c.deps.Events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	// Trailing fragments are only accepted while the session is still
	// open, so the grace period runs before the state flips.
	if c.cfg.StopGrace > 0 {
		timer := time.NewTimer(c.cfg.StopGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	active.setState(domain.SessionStateClosing)
	c.deps.Events.SessionStateChanged(domain.SessionStateClosing, domain.SessionReasonStopRequested)

	streamErr := active.stream.Close()
	<-active.eventsDone
	<-active.audioDone
	if active.playback != nil {
		_ = active.playback.Close()
	}
	c.storeCarryover(active)

	if active.finished.Load() {
		// The event loop finalized this session before we got here.
		return domain.StopResult{}, ErrSessionEnded
	}

	raw := active.reconciler.Raw()
	if raw == "" && streamErr != nil {
		c.deps.Events.SessionError(domain.ErrorCodeTransport, streamErr.Error())
		c.finishSession(active, domain.SessionStateError, domain.SessionReasonTransportFailed)
		return domain.StopResult{}, streamErr
	}
	if raw == "" {
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonNoTranscript)
		return domain.StopResult{Mode: active.mode}, ErrNoTranscript
	}

	result, reason, err := c.finalizer.Finalize(ctx, active.mode, raw)
	if err != nil {
		c.finishSession(active, domain.SessionStateError, reason)
		return domain.StopResult{}, err
	}

	c.deps.Events.FinalTranscript(result)
	c.finishSession(active, domain.SessionStateIdle, reason)
	return result, nil
}

// Abort cancels and discards the active session without finalizing.
func (c *SessionController) Abort() error {
	active, err := c.getCurrent()
	if err != nil {
		return err
	}

	c.stopSession(active)
	c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonSessionDiscarded)
	return nil
}

// Status returns the current session status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.SessionStateIdle}
	}
	active := c.current
	return domain.Status{
		SessionID:      active.id.String(),
		Mode:           active.mode,
		State:          active.getState(),
		Active:         !active.finished.Load(),
		ConversationID: active.conversationID(),
		StartedAt:      active.startedAt,
	}
}

func (c *SessionController) getCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

// sessionActive reports whether results of in-flight tool calls may
// still be applied.
func (c *SessionController) sessionActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.getState() == domain.SessionStateOpen
}

func (c *SessionController) readConversationSecrets(ctx context.Context) (string, string, error) {
	voiceKey, err := c.deps.Secrets.Get(ctx, ports.SecretVoiceAPIKey)
	switch {
	case errors.Is(err, ports.ErrSecretNotFound), err == nil && strings.TrimSpace(voiceKey) == "":
		return "", "", errors.New(`voice provider API key is not configured; run "pixie settings secret set elevenlabs_api_key"`)
	case err != nil:
		return "", "", fmt.Errorf("failed to read voice provider API key: %w", err)
	}

	agentID, err := c.deps.Secrets.Get(ctx, ports.SecretAgentID)
	switch {
	case errors.Is(err, ports.ErrSecretNotFound), err == nil && strings.TrimSpace(agentID) == "":
		return "", "", errors.New(`voice agent identifier is not configured; run "pixie settings secret set agent_id"`)
	case err != nil:
		return "", "", fmt.Errorf("failed to read voice agent identifier: %w", err)
	}

	return voiceKey, agentID, nil
}

// stopSession tears down a session's resources without finalizing the
// transcript.
func (c *SessionController) stopSession(active *activeSession) {
	active.setState(domain.SessionStateClosing)
	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.eventsDone
	<-active.audioDone
	if active.playback != nil {
		_ = active.playback.Close()
	}
	c.storeCarryover(active)
}

// finishSession releases the slot and emits the terminal transition.
// Only the first caller wins; later teardown paths are no-ops.
func (c *SessionController) finishSession(active *activeSession, state domain.SessionState, reason domain.SessionStateReason) {
	if !active.finished.CompareAndSwap(false, true) {
		return
	}
	active.cancel()
	active.setState(state)

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	c.deps.Events.SessionStateChanged(state, reason)
	c.deps.Metrics.RecordSessionEnded(string(reason), time.Since(active.startedAt).Seconds())
}

// carryover returns the final raw fragment of the most recent session
// that produced one; the provider can leak that text into the next
// session's first fragment.
func (c *SessionController) carryover() string {
	c.carryMu.Lock()
	defer c.carryMu.Unlock()
	return c.lastFragment
}

func (c *SessionController) storeCarryover(active *activeSession) {
	last := active.reconciler.LastFragment()
	if last == "" {
		return
	}
	c.carryMu.Lock()
	c.lastFragment = last
	c.carryMu.Unlock()
}

package usecase

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/EimisPacheco/pixie/internal/domain"
	"github.com/EimisPacheco/pixie/internal/ports"
)

type activeSession struct {
	id        uuid.UUID
	mode      domain.SessionMode
	startedAt time.Time

	cancel   func()
	audio    ports.AudioSession
	stream   ports.ConversationStream
	playback *playbackQueue

	reconciler *transcriptReconciler
	seen       *callIDSet

	stateMu sync.Mutex
	state   domain.SessionState
	convID  string

	// finished flips once, on whichever teardown path wins.
	finished atomic.Bool

	eventsDone chan struct{}
	audioDone  chan struct{}
}

func (s *activeSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *activeSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// casState transitions between two states only if the session is still
// in the expected one, so a late handshake cannot revive a session that
// is already closing.
func (s *activeSession) casState(from, to domain.SessionState) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *activeSession) setConversationID(id string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.convID = id
}

func (s *activeSession) conversationID() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.convID
}

// speaking reports whether agent audio is queued or playing; the
// microphone pump drops frames while it is true.
func (s *activeSession) speaking() bool {
	return s.playback != nil && s.playback.Speaking()
}

// stopped reports whether the session has left the open part of its
// lifecycle. No audio frame may be forwarded once this is true.
func (s *activeSession) stopped() bool {
	switch s.getState() {
	case domain.SessionStateConnecting, domain.SessionStateOpen:
		return false
	default:
		return true
	}
}

package usecase

import (
	"context"
	"fmt"

	"github.com/EimisPacheco/pixie/internal/domain"
)

// consumeConversationEvents is the single consumer of a session's
// inbound event stream. Events are handled strictly in arrival order;
// only tool handler bodies leave this goroutine.
func (c *SessionController) consumeConversationEvents(ctx context.Context, active *activeSession) {
	defer close(active.eventsDone)

	for event := range active.stream.Events() {
		switch ev := event.(type) {
		case domain.ConversationReady:
			c.deps.Metrics.RecordConversationEvent("conversation_ready")
			active.setConversationID(ev.ConversationID)
			if active.casState(domain.SessionStateConnecting, domain.SessionStateOpen) {
				c.deps.Events.SessionStateChanged(domain.SessionStateOpen, domain.SessionReasonConversationReady)
			}

		case domain.UserTranscript:
			c.deps.Metrics.RecordConversationEvent("user_transcript")
			if active.getState() != domain.SessionStateOpen {
				// Fragments after the session leaves open are stale.
				c.deps.Metrics.RecordTranscriptFragment(false)
				continue
			}
			accepted := active.reconciler.Add(ev.Fragment.Text)
			c.deps.Metrics.RecordTranscriptFragment(accepted)
			if !accepted {
				continue
			}
			text := active.reconciler.Raw()
			c.deps.Events.PartialTranscript(text)
			if active.mode == domain.ModeDictation {
				if err := c.deps.Target.Write(ctx, text, false); err != nil {
					c.deps.Events.SessionError(domain.ErrorCodeTextTarget, fmt.Sprintf("failed to update text target: %v", err))
				}
			}

		case domain.AgentResponse:
			c.deps.Metrics.RecordConversationEvent("agent_response")
			c.deps.Events.AgentResponse(ev.Text)

		case domain.AgentAudio:
			c.deps.Metrics.RecordConversationEvent("agent_audio")
			if active.playback != nil && active.getState() == domain.SessionStateOpen {
				active.playback.Enqueue(ev.PCM)
			}

		case domain.ToolCallRequested:
			c.deps.Metrics.RecordConversationEvent("client_tool_call")
			if active.getState() != domain.SessionStateOpen {
				continue
			}
			if !active.seen.Observe(ev.Invocation.CallID) {
				c.deps.Metrics.RecordToolDuplicate()
				continue
			}
			// Handlers may outlive a stop request; their results are
			// discarded once the session has closed.
			go c.runTool(context.WithoutCancel(ctx), active, ev.Invocation)

		case domain.Interruption:
			c.deps.Metrics.RecordConversationEvent("interruption")
			if active.playback != nil {
				active.playback.Flush()
			}
		}
	}

	c.handleStreamShutdown(active)
}

// runTool executes one accepted invocation and reports its result to
// the provider, unless the session ended first.
func (c *SessionController) runTool(ctx context.Context, active *activeSession, inv domain.ToolInvocation) {
	result, outcome := c.dispatcher.Execute(ctx, inv)
	c.deps.Metrics.RecordToolDispatch(outcome)

	if outcome == toolOutcomeDiscarded {
		c.deps.Metrics.RecordToolResultDiscarded()
		return
	}
	if !result.Success {
		c.deps.Events.SessionError(domain.ErrorCodeTool, result.Payload)
	}
	if active.finished.Load() {
		c.deps.Metrics.RecordToolResultDiscarded()
		return
	}
	if err := active.stream.SendToolResult(result); err != nil {
		c.deps.Metrics.RecordToolResultDiscarded()
	}
}

// handleStreamShutdown finalizes a session whose socket ended without a
// local stop request. A non-normal closure is fatal and surfaced; a
// clean remote close still delivers whatever transcript was captured.
func (c *SessionController) handleStreamShutdown(active *activeSession) {
	switch active.getState() {
	case domain.SessionStateConnecting, domain.SessionStateOpen:
	default:
		// A local Stop, Abort, or replacement owns this teardown.
		return
	}

	streamErr := active.stream.Wait()
	_ = active.audio.Stop()
	if active.playback != nil {
		_ = active.playback.Close()
	}
	c.storeCarryover(active)

	raw := active.reconciler.Raw()
	if streamErr != nil {
		c.deps.Events.SessionError(domain.ErrorCodeTransport, streamErr.Error())
	}

	switch {
	case raw == "" && streamErr != nil:
		c.finishSession(active, domain.SessionStateError, domain.SessionReasonTransportFailed)
	case raw == "":
		c.finishSession(active, domain.SessionStateClosed, domain.SessionReasonSessionEnded)
	default:
		result, reason, err := c.finalizer.Finalize(context.Background(), active.mode, raw)
		if err != nil {
			c.finishSession(active, domain.SessionStateError, reason)
			return
		}
		c.deps.Events.FinalTranscript(result)
		c.finishSession(active, domain.SessionStateClosed, reason)
	}
}

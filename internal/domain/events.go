package domain

// ConversationEvent is one decoded inbound event from the voice provider.
// Events are delivered to the session in arrival order.
type ConversationEvent interface {
	conversationEvent()
}

// ConversationReady reports a completed provider handshake.
type ConversationReady struct {
	ConversationID string
	AudioFormat    string
}

func (ConversationReady) conversationEvent() {}

// UserTranscript carries one transcript fragment of the user's speech.
type UserTranscript struct {
	Fragment TranscriptFragment
}

func (UserTranscript) conversationEvent() {}

// AgentResponse carries the text the agent is about to speak.
type AgentResponse struct {
	Text string
}

func (AgentResponse) conversationEvent() {}

// AgentAudio carries one decoded PCM chunk of agent speech.
type AgentAudio struct {
	PCM     []byte
	EventID int
}

func (AgentAudio) conversationEvent() {}

// ToolCallRequested asks the session to execute a named local action.
type ToolCallRequested struct {
	Invocation ToolInvocation
}

func (ToolCallRequested) conversationEvent() {}

// Interruption reports that the user cut the agent off; queued agent
// audio should be flushed.
type Interruption struct {
	EventID int
}

func (Interruption) conversationEvent() {}

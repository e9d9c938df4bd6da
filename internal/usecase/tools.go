package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/EimisPacheco/pixie/internal/metrics"
	"github.com/EimisPacheco/pixie/internal/ports"
)

// improveSystemInstruction is the fixed instruction sent with every
// improve_prompt call.
const improveSystemInstruction = `You are a prompt engineer. Rewrite the prompt you are given so it is clearer, more specific, and better structured for a large language model, while preserving the author's intent and language. Return only the rewritten prompt, with no preamble and no commentary.`

// newToolRegistry builds the fixed set of tools the voice agent can
// invoke. active reports whether the session is still open; results
// produced after it turns false are discarded.
func newToolRegistry(
	target ports.TextTarget,
	generator ports.TextGenerator,
	active func() bool,
	m *metrics.Metrics,
) map[string]ToolHandler {
	tools := &toolSet{target: target, generator: generator, active: active, metrics: m}
	return map[string]ToolHandler{
		"get_text":       tools.getText,
		"set_text":       tools.setText,
		"improve_prompt": tools.improvePrompt,
	}
}

type toolSet struct {
	target    ports.TextTarget
	generator ports.TextGenerator
	active    func() bool
	metrics   *metrics.Metrics
}

func (t *toolSet) getText(ctx context.Context, _ map[string]any) (string, error) {
	content, err := t.target.Read(ctx)
	if err != nil {
		return "I could not read the text field.", err
	}
	return content, nil
}

func (t *toolSet) setText(ctx context.Context, params map[string]any) (string, error) {
	text, ok := params["text"].(string)
	if !ok {
		return "The set_text call did not include any text to write.", errors.New("missing text parameter")
	}
	appendText, _ := params["append"].(bool)

	if !t.active() {
		return "", errSessionClosed
	}
	if err := t.target.Write(ctx, text, appendText); err != nil {
		return "I could not write to the text field.", err
	}
	if appendText {
		return "Added the text to the field.", nil
	}
	return "Replaced the field text.", nil
}

func (t *toolSet) improvePrompt(ctx context.Context, params map[string]any) (string, error) {
	content, err := t.target.Read(ctx)
	if err != nil {
		return "I could not read the prompt field.", err
	}
	if strings.TrimSpace(content) == "" {
		return "There is no prompt to improve yet. Type a prompt first, then ask me again.", nil
	}

	message := content
	if guidance, ok := params["guidance"].(string); ok && strings.TrimSpace(guidance) != "" {
		message = content + "\n\nAdditional guidance from the user: " + guidance
	}

	started := time.Now()
	improved, err := t.generator.Generate(ctx, improveSystemInstruction, message)
	if err != nil {
		t.metrics.RecordGenerativeRequest("error", time.Since(started).Seconds())
		return "I could not improve the prompt right now.", err
	}
	t.metrics.RecordGenerativeRequest("ok", time.Since(started).Seconds())

	if strings.TrimSpace(improved) == "" {
		return "The text service returned an empty improvement, so I left the prompt unchanged.", nil
	}
	if !t.active() {
		return "", errSessionClosed
	}
	if err := t.target.Write(ctx, improved, false); err != nil {
		return "I improved the prompt but could not write it back.", err
	}
	return "Done. I replaced the prompt with an improved version.", nil
}

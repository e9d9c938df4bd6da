package usecase

import (
	"context"

	"github.com/EimisPacheco/pixie/internal/domain"
	"github.com/EimisPacheco/pixie/internal/ports"
)

type transcriptFinalizer struct {
	rules     ports.RulesEngine
	target    ports.TextTarget
	clipboard ports.Clipboard
	events    ports.EventSink
}

func newTranscriptFinalizer(rules ports.RulesEngine, target ports.TextTarget, clipboard ports.Clipboard, events ports.EventSink) transcriptFinalizer {
	return transcriptFinalizer{rules: rules, target: target, clipboard: clipboard, events: events}
}

// Finalize runs the transcript through the rules engine and delivers
// it: dictation sessions rewrite the text target, and both modes copy
// the result to the clipboard. Delivery failures downgrade the outcome
// without discarding the transcript.
func (f transcriptFinalizer) Finalize(ctx context.Context, mode domain.SessionMode, raw string) (domain.StopResult, domain.SessionStateReason, error) {
	transformed, err := f.rules.Apply(raw)
	if err != nil {
		f.events.SessionError(domain.ErrorCodeRules, err.Error())
		return domain.StopResult{}, domain.SessionReasonRulesFailed, err
	}

	result := domain.StopResult{
		Mode:            mode,
		RawTranscript:   raw,
		FinalTranscript: transformed,
		Copied:          true,
	}
	reason := domain.SessionReasonTranscriptDelivered

	if mode == domain.ModeDictation {
		if err := f.target.Write(ctx, transformed, false); err != nil {
			f.events.SessionError(domain.ErrorCodeTextTarget, "transcript ready but text target write failed")
		}
	}

	if err := f.clipboard.SetText(ctx, transformed); err != nil {
		result.Copied = false
		reason = domain.SessionReasonTranscriptClipboardFailed
		f.events.SessionError(domain.ErrorCodeClipboard, "transcript ready but clipboard write failed")
	}

	return result, reason, nil
}

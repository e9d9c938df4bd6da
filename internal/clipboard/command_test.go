package clipboard

import (
	"context"
	"os/exec"
	"testing"
)

func TestSetTextWithPinnedCommand(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	clip := NewCommandClipboard("cat")
	if err := clip.SetText(context.Background(), "hello world"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetTextReportsHelperFailure(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}

	clip := NewCommandClipboard("false")
	if err := clip.SetText(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error from a failing helper")
	}
}

func TestSetTextMissingHelper(t *testing.T) {
	t.Parallel()

	clip := NewCommandClipboard("pixie-no-such-clipboard-helper")
	if err := clip.SetText(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error for a missing helper")
	}
}

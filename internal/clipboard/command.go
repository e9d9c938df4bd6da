// Package clipboard writes text to the system clipboard by piping it
// through an external helper (wl-copy, xclip, xsel, or pbcopy).
package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/EimisPacheco/pixie/internal/ports"
)

// tools lists the helpers probed in order when no command is pinned.
var tools = []struct {
	name string
	args []string
}{
	{name: "wl-copy"},
	{name: "xclip", args: []string{"-selection", "clipboard"}},
	{name: "xsel", args: []string{"--clipboard", "--input"}},
	{name: "pbcopy"},
}

// CommandClipboard shells out to a clipboard helper. An empty command
// means the first helper found on PATH wins.
type CommandClipboard struct {
	command string
}

var _ ports.Clipboard = (*CommandClipboard)(nil)

func NewCommandClipboard(command string) *CommandClipboard {
	return &CommandClipboard{command: strings.TrimSpace(command)}
}

func (c *CommandClipboard) SetText(ctx context.Context, text string) error {
	name, args, err := c.resolve()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(text)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(output.String())
		if detail != "" {
			return fmt.Errorf("clipboard helper %s failed: %w: %s", name, err, detail)
		}
		return fmt.Errorf("clipboard helper %s failed: %w", name, err)
	}
	return nil
}

func (c *CommandClipboard) resolve() (string, []string, error) {
	if c.command != "" {
		if _, err := exec.LookPath(c.command); err != nil {
			return "", nil, fmt.Errorf("clipboard helper %q not found: %w", c.command, err)
		}
		return c.command, nil, nil
	}

	for _, tool := range tools {
		if _, err := exec.LookPath(tool.name); err == nil {
			return tool.name, tool.args, nil
		}
	}
	return "", nil, fmt.Errorf("no clipboard helper found; install one of wl-copy, xclip, xsel, or pbcopy")
}

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/EimisPacheco/pixie/internal/ports"
)

// drainGrace is how long the player may keep playing buffered audio
// after its stdin closes before it is interrupted.
const drainGrace = 1500 * time.Millisecond

// FFPlayPlayer renders agent speech with an ffplay child process that
// reads raw PCM from stdin.
type FFPlayPlayer struct {
	command string
}

var _ ports.AudioPlayer = (*FFPlayPlayer)(nil)

func NewFFPlayPlayer(command string) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command}
}

func (p *FFPlayPlayer) Open(ctx context.Context, cfg ports.PlaybackConfig) (ports.AudioSink, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-nodisp",
		"-autoexit",
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"-",
	}

	cmd := exec.CommandContext(ctx, p.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create player stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("player exited before playback started: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, errors.New("player exited before playback started")
	case <-time.After(startProbe):
	}

	return &ffplaySink{
		stdin:   stdin,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffplaySink struct {
	stdin  io.WriteCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	closeOnce sync.Once
	closeErr  error
}

// Write hands one PCM chunk to the player. It blocks while the
// player's input pipe is full, which is the natural pacing for
// real-time playback.
func (s *ffplaySink) Write(pcm []byte) error {
	if _, err := s.stdin.Write(pcm); err != nil {
		if s.stderr != nil && s.stderr.Len() > 0 {
			return fmt.Errorf("write to player: %w: %s", err, strings.TrimSpace(s.stderr.String()))
		}
		return fmt.Errorf("write to player: %w", err)
	}
	return nil
}

// Close lets the player finish the audio it has buffered, then tears
// it down.
func (s *ffplaySink) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.closeErr = ignoreExit(err)
			}
		case <-time.After(drainGrace):
			if s.process != nil {
				_ = s.process.Signal(os.Interrupt)
			}
			select {
			case err, ok := <-s.waitErr:
				if ok {
					s.closeErr = ignoreExit(err)
				}
			case <-time.After(interruptGrace):
				if s.process != nil {
					_ = s.process.Kill()
				}
				err, ok := <-s.waitErr
				if ok {
					s.closeErr = ignoreExit(err)
				}
			}
		}

		if s.closeErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.closeErr = fmt.Errorf("%w: %s", s.closeErr, strings.TrimSpace(s.stderr.String()))
		}
	})

	return s.closeErr
}

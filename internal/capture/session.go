// Package capture drives the external ffmpeg x11grab encoder: it starts the
// process against a resolved region, and on stop signals it and waits for
// the process to exit so the output container is fully flushed before anyone
// reads it.
package capture

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bryanchriswhite/screenrec/internal/logger"
	"github.com/bryanchriswhite/screenrec/internal/region"
)

// ErrExitedEarly indicates the capture process died before Stop was
// requested (crash or external kill). The output file may be truncated, so
// post-processing must be skipped.
var ErrExitedEarly = errors.New("capture process exited before stop was requested")

// State of a capture session.
type State string

const (
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// stopGrace is how long a signalled encoder gets to finalize the container
// before it is killed.
const stopGrace = 10 * time.Second

// Config describes a single recording. Consumed once by Start.
type Config struct {
	Region     region.Region
	Framerate  int
	ShowCursor bool

	// Display is the X display to grab from; empty means $DISPLAY.
	Display string

	// FFmpeg is the encoder binary; empty means "ffmpeg" from $PATH.
	FFmpeg string

	// OutputPath is where the encoder writes the container file.
	OutputPath string
}

// Command builds the encoder argv for a recording config.
func Command(cfg Config) (string, []string) {
	display := cfg.Display
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		display = ":0.0"
	}

	drawMouse := "0"
	if cfg.ShowCursor {
		drawMouse = "1"
	}

	bin := cfg.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}

	args := []string{
		"-loglevel", "error",
		"-f", "x11grab",
		"-draw_mouse", drawMouse,
		"-framerate", fmt.Sprintf("%d", cfg.Framerate),
		"-video_size", fmt.Sprintf("%dx%d", cfg.Region.Width, cfg.Region.Height),
		"-i", fmt.Sprintf("%s+%d,%d", display, cfg.Region.Left, cfg.Region.Top),
		"-codec:v", "libx264",
		"-preset", "superfast",
		"-pix_fmt", "yuv420p",
		"-y", cfg.OutputPath,
	}
	return bin, args
}

// Session owns a running capture process. It is created by Start and must
// be finished with Stop.
type Session struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	state   State
	waitErr error
}

// Start launches the encoder in the background and returns a handle for it.
func Start(cfg Config) (*Session, error) {
	bin, args := Command(cfg)
	return StartCommand(bin, args)
}

// StartCommand launches an arbitrary capture command. Split out from Start
// so tests can run a stand-in process instead of ffmpeg.
func StartCommand(bin string, args []string) (*Session, error) {
	log := logger.WithComponent("capture")

	cmd := exec.Command(bin, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture process: %w", err)
	}

	s := &Session{
		cmd:   cmd,
		done:  make(chan struct{}),
		state: StateRunning,
	}

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.mu.Unlock()
		close(s.done)
	}()

	log.Info().Int("pid", cmd.Process.Pid).Str("cmd", bin).Msg("capture started")
	return s, nil
}

// Pid returns the capture process identifier.
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the capture process has exited, for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop sends a graceful termination signal to the encoder and blocks until
// the process has exited, guaranteeing the output file is flushed and closed
// before it returns. If the process already died on its own, Stop reports
// ErrExitedEarly instead of hanging.
func (s *Session) Stop() error {
	log := logger.WithComponent("capture")

	s.mu.Lock()
	select {
	case <-s.done:
		s.state = StateStopped
		waitErr := s.waitErr
		s.mu.Unlock()
		log.Error().AnErr("cause", waitErr).Msg("capture process was already gone")
		return fmt.Errorf("%w: %v", ErrExitedEarly, waitErr)
	default:
	}
	s.state = StateStopping
	s.mu.Unlock()

	// SIGINT lets ffmpeg finalize the container trailer.
	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		// Lost the race with process exit.
		<-s.done
		s.setStopped()
		return fmt.Errorf("%w: %v", ErrExitedEarly, err)
	}

	log.Info().Int("pid", s.cmd.Process.Pid).Msg("stop requested, waiting for encoder to finish")

	select {
	case <-s.done:
	case <-time.After(stopGrace):
		log.Warn().Msg("encoder ignored interrupt, killing it")
		_ = s.cmd.Process.Kill()
		<-s.done
	}

	s.setStopped()
	log.Info().Msg("capture stopped")
	return nil
}

func (s *Session) setStopped() {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

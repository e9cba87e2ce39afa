package region

import (
	"fmt"
	"os/exec"

	"github.com/bryanchriswhite/screenrec/internal/logger"
	"github.com/bryanchriswhite/screenrec/internal/tools"
)

// CommandRunner runs an interactive selection tool and returns its stdout.
type CommandRunner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// Resolver determines the capture rectangle using one of three strategies:
// query the whole display, have the operator click a window, or have the
// operator drag a rectangle.
type Resolver struct {
	// Display is the X display to query; empty means $DISPLAY.
	Display string

	// Prompt asks the operator for confirmation before an interactive pick.
	// It returns false when the operator declines. Nil skips prompting.
	Prompt func(summary, body string) (bool, error)

	// Tools resolves external tool paths and availability.
	Tools *tools.Preflight

	// Run executes selection tools; defaults to exec. QueryDisplay queries
	// the X server for the screen size; defaults to an XGB lookup. Both are
	// swappable for tests.
	Run          CommandRunner
	QueryDisplay func(display string) (Region, error)
}

// NewResolver returns a resolver wired to the real X server and tools.
func NewResolver(display string, pf *tools.Preflight,
	prompt func(summary, body string) (bool, error)) *Resolver {
	return &Resolver{
		Display:      display,
		Prompt:       prompt,
		Tools:        pf,
		Run:          execRunner,
		QueryDisplay: displayGeometry,
	}
}

// Resolve produces the capture region for the given mode. The region is
// resolved exactly once; callers must not expect it to track later window
// movement.
func (res *Resolver) Resolve(mode Mode, ov Overrides) (Region, error) {
	log := logger.WithComponent("region")

	var (
		r   Region
		err error
	)
	switch mode {
	case ModeFullScreen:
		r, err = res.resolveFullScreen(ov)
	case ModeWindow:
		r, err = res.resolveWindow("Select a window",
			"Click on the window you want to record.")
	case ModeRectangle:
		r, err = res.resolveRectangle()
	default:
		return Region{}, fmt.Errorf("unknown selection mode %q", mode)
	}
	if err != nil {
		return Region{}, err
	}

	log.Info().Str("mode", string(mode)).Str("region", r.String()).Msg("capture region resolved")
	return r, nil
}

// resolveFullScreen queries the display size and merges any explicit
// geometry overrides on top of it. Overrides win over the queried values.
func (res *Resolver) resolveFullScreen(ov Overrides) (Region, error) {
	r, err := res.queryDisplay()
	if err != nil {
		return Region{}, err
	}
	r = ov.merge(r)
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

func (res *Resolver) resolveWindow(summary, body string) (Region, error) {
	if res.Prompt != nil {
		ok, err := res.Prompt(summary, body)
		if err != nil {
			return Region{}, fmt.Errorf("window pick prompt: %w", err)
		}
		if !ok {
			return Region{}, ErrCancelled
		}
	}

	// xwininfo blocks until the operator clicks a window.
	out, err := res.run(res.toolPath(tools.Xwininfo), "-frame")
	if err != nil {
		return Region{}, fmt.Errorf("%w: xwininfo: %v", ErrGeometryUnavailable, err)
	}
	return parseXwininfo(out)
}

// resolveRectangle runs slop for a drag selection. When slop is not
// installed it degrades to the window pick, and when xwininfo is missing
// too there is nothing left to select with.
func (res *Resolver) resolveRectangle() (Region, error) {
	log := logger.WithComponent("region")

	if !res.toolAvailable(tools.Slop) {
		if !res.toolAvailable(tools.Xwininfo) {
			return Region{}, fmt.Errorf("%w: neither %s nor %s is installed",
				tools.ErrToolMissing, tools.Slop, tools.Xwininfo)
		}
		log.Warn().Msg("slop not found, falling back to window selection")
		return res.resolveWindow("Select a window",
			"slop is not installed. Click on a window to record it instead.")
	}

	out, err := res.run(res.toolPath(tools.Slop), "-f", "%x %y %w %h")
	if err != nil {
		return Region{}, fmt.Errorf("%w: slop: %v", ErrGeometryUnavailable, err)
	}
	return parseSlop(out)
}

func (res *Resolver) run(name string, args ...string) ([]byte, error) {
	if res.Run != nil {
		return res.Run(name, args...)
	}
	return execRunner(name, args...)
}

func (res *Resolver) queryDisplay() (Region, error) {
	if res.QueryDisplay != nil {
		return res.QueryDisplay(res.Display)
	}
	return displayGeometry(res.Display)
}

func (res *Resolver) toolPath(name string) string {
	if res.Tools != nil {
		return res.Tools.Path(name)
	}
	return name
}

func (res *Resolver) toolAvailable(name string) bool {
	if res.Tools != nil {
		return res.Tools.Available(name)
	}
	_, err := exec.LookPath(name)
	return err == nil
}

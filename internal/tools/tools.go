// Package tools locates the external programs the recorder delegates to and
// verifies they are present before any capture side effect happens.
package tools

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/hashicorp/go-multierror"

	"github.com/bryanchriswhite/screenrec/internal/logger"
)

// ErrToolMissing indicates a required external program is not installed.
var ErrToolMissing = errors.New("required tool missing")

// Well-known collaborator names. A configured path override replaces the
// bare name before lookup.
const (
	FFmpeg   = "ffmpeg"
	Xwininfo = "xwininfo"
	Slop     = "slop"
	Gifsicle = "gifsicle"
)

// Preflight checks tool availability. LookPath is swappable for tests and
// defaults to exec.LookPath.
type Preflight struct {
	// Overrides maps a tool name to a configured absolute path.
	Overrides map[string]string

	LookPath func(file string) (string, error)
}

func NewPreflight(overrides map[string]string) *Preflight {
	return &Preflight{
		Overrides: overrides,
		LookPath:  exec.LookPath,
	}
}

// Path returns the configured override for a tool, or the bare name for
// normal $PATH lookup.
func (p *Preflight) Path(name string) string {
	if p.Overrides != nil {
		if override, ok := p.Overrides[name]; ok && override != "" {
			return override
		}
	}
	return name
}

// Available reports whether a single tool can be found.
func (p *Preflight) Available(name string) bool {
	_, err := p.lookPath(p.Path(name))
	return err == nil
}

// Require checks every named tool and returns one combined error listing all
// the missing ones, so the operator fixes the environment in a single pass.
func (p *Preflight) Require(names ...string) error {
	log := logger.WithComponent("tools")

	var errs *multierror.Error
	for _, name := range names {
		path, err := p.lookPath(p.Path(name))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: %s", ErrToolMissing, name))
			continue
		}
		log.Debug().Str("tool", name).Str("path", path).Msg("tool found")
	}
	return errs.ErrorOrNil()
}

func (p *Preflight) lookPath(file string) (string, error) {
	if p.LookPath != nil {
		return p.LookPath(file)
	}
	return exec.LookPath(file)
}

// Package postprocess turns a finished capture into the requested output
// format. Video containers pass through untouched; animated GIF output goes
// through a two-pass palette pipeline and an optional lossless optimize.
package postprocess

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bryanchriswhite/screenrec/internal/logger"
)

// Format of the final output file.
type Format string

const (
	// FormatVideo covers raster-video containers; the captured file is the
	// final output as-is.
	FormatVideo Format = "video"
	// FormatGIF requires transcoding through the palette pipeline.
	FormatGIF Format = "gif"
)

var (
	// ErrTranscodeFailed indicates the palette pipeline exited non-zero.
	ErrTranscodeFailed = errors.New("transcode failed")
	// ErrOptimizeFailed indicates the optimizer exited non-zero. The
	// pre-optimize output file is preserved.
	ErrOptimizeFailed = errors.New("optimize failed")
)

// Detect derives the target format from the output file extension.
func Detect(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".gif") {
		return FormatGIF
	}
	return FormatVideo
}

// Spec describes one post-processing invocation. For GIF targets InputPath
// is the intermediate capture video and is consumed: Process removes it
// before returning, whatever the transcode outcome.
type Spec struct {
	InputPath  string
	OutputPath string
	Target     Format

	// MaxColors caps the generated palette; zero means the encoder default.
	MaxColors int
	Dither    bool
	Optimize  bool
}

// Runner executes an external tool to completion. Swappable for tests.
type Runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Processor runs the external transcode and optimize tools.
type Processor struct {
	// FFmpeg and Gifsicle are the tool binaries; empty means $PATH lookup
	// by bare name.
	FFmpeg   string
	Gifsicle string

	Run Runner
}

func NewProcessor(ffmpeg, gifsicle string) *Processor {
	return &Processor{
		FFmpeg:   ffmpeg,
		Gifsicle: gifsicle,
		Run:      execRunner,
	}
}

// PaletteArgs builds the first encoder pass: generate a palette from the
// decimated frame stream. A dedicated palette pass gives visibly better
// color than single-pass quantization.
func PaletteArgs(spec Spec, palettePath string) []string {
	vf := "mpdecimate,palettegen"
	if spec.MaxColors > 0 {
		vf = fmt.Sprintf("mpdecimate,palettegen=max_colors=%d", spec.MaxColors)
	}
	return []string{
		"-loglevel", "error",
		"-i", spec.InputPath,
		"-vf", vf,
		"-y", palettePath,
	}
}

// RenderArgs builds the second encoder pass: apply the generated palette to
// produce the final animated image.
func RenderArgs(spec Spec, palettePath string) []string {
	dither := "none"
	if spec.Dither {
		dither = "sierra2_4a"
	}
	filter := fmt.Sprintf("[0:v]mpdecimate[v];[v][1:v]paletteuse=dither=%s", dither)
	return []string{
		"-loglevel", "error",
		"-i", spec.InputPath,
		"-i", palettePath,
		"-filter_complex", filter,
		"-y", spec.OutputPath,
	}
}

// OptimizeArgs builds the in-place lossless optimizer invocation.
func OptimizeArgs(outputPath string) []string {
	return []string{"-O3", "--batch", outputPath}
}

// Process produces the final output from a finished capture. For video
// targets the captured file already is the output and nothing runs. For GIF
// targets it transcodes via the two-pass palette pipeline and optionally
// optimizes the result in place. The intermediate palette file is removed on
// every exit path.
func (p *Processor) Process(spec Spec) error {
	log := logger.WithComponent("postprocess")

	if spec.Target != FormatGIF {
		log.Debug().Str("output", spec.OutputPath).Msg("video container, no transcoding")
		return nil
	}

	// The input is the intermediate capture; gone once Process returns.
	defer os.Remove(spec.InputPath)

	if err := p.transcode(spec); err != nil {
		return err
	}

	if spec.Optimize {
		log.Info().Str("output", spec.OutputPath).Msg("optimizing")
		if err := p.run(p.gifsicle(), OptimizeArgs(spec.OutputPath)...); err != nil {
			// The un-optimized output stays in place.
			return fmt.Errorf("%w: %v", ErrOptimizeFailed, err)
		}
	}

	return nil
}

func (p *Processor) transcode(spec Spec) error {
	log := logger.WithComponent("postprocess")

	palette, err := tempPalette()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	defer os.Remove(palette)

	log.Info().Str("input", spec.InputPath).Str("output", spec.OutputPath).
		Int("max_colors", spec.MaxColors).Bool("dither", spec.Dither).
		Msg("transcoding through palette pipeline")

	if err := p.run(p.ffmpeg(), PaletteArgs(spec, palette)...); err != nil {
		return fmt.Errorf("%w: palette pass: %v", ErrTranscodeFailed, err)
	}
	if err := p.run(p.ffmpeg(), RenderArgs(spec, palette)...); err != nil {
		return fmt.Errorf("%w: render pass: %v", ErrTranscodeFailed, err)
	}
	return nil
}

func tempPalette() (string, error) {
	f, err := os.CreateTemp("", "screenrec-palette-*.png")
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (p *Processor) run(name string, args ...string) error {
	if p.Run != nil {
		return p.Run(name, args...)
	}
	return execRunner(name, args...)
}

func (p *Processor) ffmpeg() string {
	if p.FFmpeg != "" {
		return p.FFmpeg
	}
	return "ffmpeg"
}

func (p *Processor) gifsicle() string {
	if p.Gifsicle != "" {
		return p.Gifsicle
	}
	return "gifsicle"
}

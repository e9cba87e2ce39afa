package postprocess

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	require.Equal(t, FormatGIF, Detect("out.gif"))
	require.Equal(t, FormatGIF, Detect("OUT.GIF"))
	require.Equal(t, FormatVideo, Detect("out.mp4"))
	require.Equal(t, FormatVideo, Detect("out.mkv"))
	require.Equal(t, FormatVideo, Detect("out.webm"))
	require.Equal(t, FormatVideo, Detect("out"))
}

func TestPaletteArgs(t *testing.T) {
	spec := Spec{InputPath: "in.mp4", MaxColors: 64}
	args := PaletteArgs(spec, "/tmp/palette.png")
	joined := strings.Join(args, " ")
	require.Contains(t, joined, "-i in.mp4")
	require.Contains(t, joined, "palettegen=max_colors=64")
	require.Equal(t, "/tmp/palette.png", args[len(args)-1])
}

func TestPaletteArgsDefaultColors(t *testing.T) {
	args := PaletteArgs(Spec{InputPath: "in.mp4"}, "p.png")
	require.NotContains(t, strings.Join(args, " "), "max_colors")
}

func TestRenderArgs(t *testing.T) {
	spec := Spec{InputPath: "in.mp4", OutputPath: "out.gif", Dither: true}
	args := RenderArgs(spec, "p.png")
	joined := strings.Join(args, " ")
	require.Contains(t, joined, "paletteuse=dither=sierra2_4a")
	require.Equal(t, "out.gif", args[len(args)-1])

	spec.Dither = false
	joined = strings.Join(RenderArgs(spec, "p.png"), " ")
	require.Contains(t, joined, "paletteuse=dither=none")
}

// recordingRunner captures every invocation instead of executing anything.
type recordingRunner struct {
	calls [][]string
	fail  func(call int) error
}

func (r *recordingRunner) run(name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.fail != nil {
		return r.fail(len(r.calls))
	}
	return nil
}

func TestProcessVideoIsPassthrough(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.mp4")
	require.NoError(t, os.WriteFile(out, []byte("capture"), 0644))

	rec := &recordingRunner{}
	p := &Processor{Run: rec.run}

	err := p.Process(Spec{InputPath: out, OutputPath: out, Target: FormatVideo, Optimize: false})
	require.NoError(t, err)
	require.Empty(t, rec.calls, "video targets must not invoke any tool")
	require.FileExists(t, out, "the captured file is the final output")
}

func TestProcessGIFConsumesIntermediateOnSuccess(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(in, []byte("capture"), 0644))

	rec := &recordingRunner{}
	p := &Processor{Run: rec.run}

	err := p.Process(Spec{InputPath: in, OutputPath: "out.gif", Target: FormatGIF, MaxColors: 256})
	require.NoError(t, err)
	require.NoFileExists(t, in, "intermediate video must be removed after transcoding")
}

func TestProcessGIFConsumesIntermediateOnFailure(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(in, []byte("capture"), 0644))

	rec := &recordingRunner{fail: func(call int) error { return errors.New("boom") }}
	p := &Processor{Run: rec.run}

	err := p.Process(Spec{InputPath: in, OutputPath: "out.gif", Target: FormatGIF})
	require.ErrorIs(t, err, ErrTranscodeFailed)
	require.NoFileExists(t, in, "intermediate video must be removed on a failed transcode too")
}

func TestProcessGIFRunsTwoPasses(t *testing.T) {
	rec := &recordingRunner{}
	p := &Processor{FFmpeg: "/opt/ffmpeg", Run: rec.run}

	err := p.Process(Spec{
		InputPath:  "in.mp4",
		OutputPath: "out.gif",
		Target:     FormatGIF,
		MaxColors:  64,
		Dither:     true,
	})
	require.NoError(t, err)
	require.Len(t, rec.calls, 2)

	pass1 := strings.Join(rec.calls[0], " ")
	pass2 := strings.Join(rec.calls[1], " ")
	require.Equal(t, "/opt/ffmpeg", rec.calls[0][0])
	require.Contains(t, pass1, "palettegen=max_colors=64")
	require.Contains(t, pass2, "paletteuse=dither=sierra2_4a")

	// Both passes must agree on the palette file, and it must be cleaned up.
	palette := rec.calls[0][len(rec.calls[0])-1]
	require.Contains(t, pass2, palette)
	_, statErr := os.Stat(palette)
	require.True(t, os.IsNotExist(statErr), "palette file must be removed")
}

func TestProcessGIFOptimize(t *testing.T) {
	rec := &recordingRunner{}
	p := &Processor{Run: rec.run}

	err := p.Process(Spec{
		InputPath:  "in.mp4",
		OutputPath: "out.gif",
		Target:     FormatGIF,
		MaxColors:  256,
		Optimize:   true,
	})
	require.NoError(t, err)
	require.Len(t, rec.calls, 3)
	require.Equal(t, []string{"gifsicle", "-O3", "--batch", "out.gif"}, rec.calls[2])
}

func TestProcessTranscodeFailureCleansPalette(t *testing.T) {
	rec := &recordingRunner{fail: func(call int) error {
		if call == 1 {
			return errors.New("boom")
		}
		return nil
	}}
	p := &Processor{Run: rec.run}

	err := p.Process(Spec{InputPath: "in.mp4", OutputPath: "out.gif", Target: FormatGIF})
	require.ErrorIs(t, err, ErrTranscodeFailed)
	require.Len(t, rec.calls, 1, "render pass must not run after a failed palette pass")

	palette := rec.calls[0][len(rec.calls[0])-1]
	_, statErr := os.Stat(palette)
	require.True(t, os.IsNotExist(statErr), "palette file must be removed on failure too")
}

func TestProcessOptimizeFailurePreservesOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.gif")

	rec := &recordingRunner{fail: func(call int) error {
		if call == 3 {
			return errors.New("gifsicle blew up")
		}
		// Pretend the render pass produced the output.
		if call == 2 {
			return os.WriteFile(out, []byte("GIF89a..."), 0644)
		}
		return nil
	}}
	p := &Processor{Run: rec.run}

	err := p.Process(Spec{
		InputPath:  "in.mp4",
		OutputPath: out,
		Target:     FormatGIF,
		Optimize:   true,
	})
	require.ErrorIs(t, err, ErrOptimizeFailed)

	// The pre-optimize output survives the failed optimize pass.
	data, readErr := os.ReadFile(out)
	require.NoError(t, readErr)
	require.NotEmpty(t, data)
}

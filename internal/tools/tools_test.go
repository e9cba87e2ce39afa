package tools

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func stubLookPath(available ...string) func(string) (string, error) {
	set := make(map[string]bool, len(available))
	for _, name := range available {
		set[name] = true
	}
	return func(file string) (string, error) {
		if set[file] {
			return "/usr/bin/" + file, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestRequireAllPresent(t *testing.T) {
	pf := NewPreflight(nil)
	pf.LookPath = stubLookPath(FFmpeg, Gifsicle)

	require.NoError(t, pf.Require(FFmpeg, Gifsicle))
}

func TestRequireReportsEveryMissingTool(t *testing.T) {
	pf := NewPreflight(nil)
	pf.LookPath = stubLookPath(FFmpeg)

	err := pf.Require(FFmpeg, Slop, Gifsicle)
	require.ErrorIs(t, err, ErrToolMissing)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, 2, merr.Len())
}

func TestPathOverride(t *testing.T) {
	pf := NewPreflight(map[string]string{FFmpeg: "/opt/ffmpeg/bin/ffmpeg"})
	require.Equal(t, "/opt/ffmpeg/bin/ffmpeg", pf.Path(FFmpeg))
	require.Equal(t, "slop", pf.Path(Slop))
}

func TestRequireHonorsOverride(t *testing.T) {
	pf := NewPreflight(map[string]string{FFmpeg: "/opt/ffmpeg/bin/ffmpeg"})
	pf.LookPath = stubLookPath("/opt/ffmpeg/bin/ffmpeg")

	require.NoError(t, pf.Require(FFmpeg))
}

func TestAvailable(t *testing.T) {
	pf := NewPreflight(nil)
	pf.LookPath = stubLookPath(Slop)

	require.True(t, pf.Available(Slop))
	require.False(t, pf.Available(Xwininfo))
}

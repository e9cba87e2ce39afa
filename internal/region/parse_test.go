package region

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const xwininfoSample = `
xwininfo: Window id: 0x3200007 "terminal"

  Absolute upper-left X:  104
  Absolute upper-left Y:  58
  Relative upper-left X:  0
  Relative upper-left Y:  0
  Width: 1280
  Height: 720
  Depth: 24
  Corners:  +104+58  -536+58  -536-302  +104-302
  -geometry 1280x720+104+58
`

func TestParseXwininfo(t *testing.T) {
	r, err := parseXwininfo([]byte(xwininfoSample))
	require.NoError(t, err)
	require.Equal(t, Region{Left: 104, Top: 58, Width: 1280, Height: 720}, r)
}

func TestParseXwininfoMissingFieldIsHardError(t *testing.T) {
	// A partial match must not fall back to defaults for the missing field.
	truncated := `
  Absolute upper-left X:  104
  Absolute upper-left Y:  58
  Width: 1280
`
	_, err := parseXwininfo([]byte(truncated))
	require.ErrorIs(t, err, ErrGeometryUnavailable)
	require.Contains(t, err.Error(), "height")
}

func TestParseXwininfoGarbage(t *testing.T) {
	_, err := parseXwininfo([]byte("xwininfo: error: unable to parse target"))
	require.ErrorIs(t, err, ErrGeometryUnavailable)
}

func TestParseXwininfoClampsNegativeOrigin(t *testing.T) {
	offscreen := `
  Absolute upper-left X:  -20
  Absolute upper-left Y:  -4
  Width: 640
  Height: 480
`
	r, err := parseXwininfo([]byte(offscreen))
	require.NoError(t, err)
	require.Equal(t, Region{Left: 0, Top: 0, Width: 640, Height: 480}, r)
}

func TestParseSlop(t *testing.T) {
	r, err := parseSlop([]byte("10 20 300 400\n"))
	require.NoError(t, err)
	require.Equal(t, Region{Left: 10, Top: 20, Width: 300, Height: 400}, r)
}

func TestParseSlopRejectsBadOutput(t *testing.T) {
	for _, out := range []string{"", "10 20 300", "10 20 300 400 500", "a b c d", "10 20 0 400"} {
		_, err := parseSlop([]byte(out))
		require.ErrorIs(t, err, ErrGeometryUnavailable, "output %q", out)
	}
}

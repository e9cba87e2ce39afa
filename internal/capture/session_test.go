package capture

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/screenrec/internal/region"
)

func TestCommand(t *testing.T) {
	bin, args := Command(Config{
		Region:     region.Region{Left: 10, Top: 20, Width: 1280, Height: 720},
		Framerate:  30,
		ShowCursor: true,
		Display:    ":1",
		OutputPath: "out.mp4",
	})

	require.Equal(t, "ffmpeg", bin)
	joined := strings.Join(args, " ")
	require.Contains(t, joined, "-f x11grab")
	require.Contains(t, joined, "-framerate 30")
	require.Contains(t, joined, "-video_size 1280x720")
	require.Contains(t, joined, "-i :1+10,20")
	require.Contains(t, joined, "-draw_mouse 1")
	require.Equal(t, "out.mp4", args[len(args)-1])
}

func TestCommandHidesCursor(t *testing.T) {
	_, args := Command(Config{
		Region:     region.Region{Width: 100, Height: 100},
		Framerate:  15,
		ShowCursor: false,
		Display:    ":0.0",
		OutputPath: "out.mp4",
	})
	require.Contains(t, strings.Join(args, " "), "-draw_mouse 0")
}

func TestStopWaitsForProcessExit(t *testing.T) {
	sess, err := StartCommand("sleep", []string{"60"})
	require.NoError(t, err)
	require.Equal(t, StateRunning, sess.State())

	err = sess.Stop()
	require.NoError(t, err)
	require.Equal(t, StateStopped, sess.State())

	// Stop must not return before the process is gone.
	select {
	case <-sess.Done():
	default:
		t.Fatal("Stop returned while the process was still running")
	}
}

func TestStopDetectsEarlyExit(t *testing.T) {
	sess, err := StartCommand("true", nil)
	require.NoError(t, err)

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	err = sess.Stop()
	require.ErrorIs(t, err, ErrExitedEarly)
	require.Equal(t, StateStopped, sess.State())
}

func TestStartUnknownBinary(t *testing.T) {
	_, err := StartCommand("screenrec-test-no-such-binary", nil)
	require.Error(t, err)
}

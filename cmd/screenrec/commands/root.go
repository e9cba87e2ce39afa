package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/screenrec/internal/capture"
	"github.com/bryanchriswhite/screenrec/internal/config"
	"github.com/bryanchriswhite/screenrec/internal/control"
	"github.com/bryanchriswhite/screenrec/internal/logger"
	"github.com/bryanchriswhite/screenrec/internal/notify"
	"github.com/bryanchriswhite/screenrec/internal/output"
	"github.com/bryanchriswhite/screenrec/internal/postprocess"
	"github.com/bryanchriswhite/screenrec/internal/region"
	"github.com/bryanchriswhite/screenrec/internal/tools"
)

var (
	cfgFile string

	flagFullscreen bool
	flagWindow     bool
	flagSelect     bool

	flagFramerate int
	flagLeft      int
	flagTop       int
	flagWidth     int
	flagHeight    int

	flagForce     bool
	flagNoConfirm bool
	flagCursor    bool

	flagMaxColors int
	flagDither    bool
	flagOptimize  bool

	flagDebug       bool
	flagDelay       int
	flagControlPort int

	rootCmd = &cobra.Command{
		Use:   "screenrec [flags] OUTPUT-FILE",
		Short: "Record the screen, a window, or a selected region to video or GIF",
		Long: `screenrec records an X11 display region to a video container or an
animated GIF. Capture and encoding are delegated to ffmpeg; window and
rectangle selection to xwininfo and slop; GIF size optimization to gifsicle.

The recording region is resolved once, up front: the whole display, a window
the operator clicks, or a rectangle the operator drags. Recording runs until
the operator clicks the stop notification (or sends SIGINT).`,
		Example: `  # Record the whole screen to MP4, no prompts
  screenrec --fullscreen --no-confirm out.mp4

  # Record a clicked window to an optimized GIF with a capped palette
  screenrec --window --dither --max-colors 64 --optimize out.gif

  # Record a dragged rectangle at 30 fps
  screenrec --select -r 30 clip.mp4`,
		Args: cobra.ExactArgs(1),
		RunE: runRecord,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/screenrec/config.yaml)")

	rootCmd.Flags().BoolVar(&flagFullscreen, "fullscreen", false, "record the whole display (default)")
	rootCmd.Flags().BoolVarP(&flagWindow, "window", "w", false, "click a window to record it")
	rootCmd.Flags().BoolVarP(&flagSelect, "select", "s", false, "drag a rectangle to record it")

	rootCmd.Flags().IntVarP(&flagFramerate, "framerate", "r", 0, "frames per second")
	rootCmd.Flags().IntVar(&flagLeft, "left", 0, "capture region left edge override")
	rootCmd.Flags().IntVar(&flagTop, "top", 0, "capture region top edge override")
	rootCmd.Flags().IntVar(&flagWidth, "width", 0, "capture region width override")
	rootCmd.Flags().IntVar(&flagHeight, "height", 0, "capture region height override")

	rootCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "rename an existing output file aside instead of failing")
	rootCmd.Flags().BoolVarP(&flagNoConfirm, "no-confirm", "y", false, "skip all confirmation prompts")
	rootCmd.Flags().BoolVar(&flagCursor, "cursor", true, "include the mouse cursor in the capture")

	rootCmd.Flags().IntVar(&flagMaxColors, "max-colors", 0, "maximum palette colors for GIF output (2-256)")
	rootCmd.Flags().BoolVar(&flagDither, "dither", false, "dither GIF output")
	rootCmd.Flags().BoolVarP(&flagOptimize, "optimize", "O", false, "run a lossless gifsicle pass over the final GIF")

	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().IntVar(&flagDelay, "delay", 0, "seconds to wait between confirmation and first frame")
	rootCmd.Flags().IntVar(&flagControlPort, "control-port", 0, "serve a local stop/status HTTP API on this port")

	// Flag > config file > built-in default
	viper.BindPFlag("framerate", rootCmd.Flags().Lookup("framerate"))
	viper.BindPFlag("show_cursor", rootCmd.Flags().Lookup("cursor"))
	viper.BindPFlag("max_colors", rootCmd.Flags().Lookup("max-colors"))
	viper.BindPFlag("dither", rootCmd.Flags().Lookup("dither"))
	viper.BindPFlag("optimize", rootCmd.Flags().Lookup("optimize"))
	viper.BindPFlag("delay_seconds", rootCmd.Flags().Lookup("delay"))
	viper.BindPFlag("control_port", rootCmd.Flags().Lookup("control-port"))
}

// Execute runs the root command. The process exit code is the number of
// errors accumulated during the run.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errorCount(err))
	}
}

// errorCount converts a (possibly accumulated) error into an exit code.
func errorCount(err error) int {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		if n := merr.Len(); n > 0 {
			return n
		}
	}
	return 1
}

// selectionMode maps the mutually exclusive mode flags to a strategy.
// Full-screen is the default when no mode flag is given.
func selectionMode() (region.Mode, error) {
	set := 0
	mode := region.ModeFullScreen
	if flagFullscreen {
		set++
	}
	if flagWindow {
		set++
		mode = region.ModeWindow
	}
	if flagSelect {
		set++
		mode = region.ModeRectangle
	}
	if set > 1 {
		return "", fmt.Errorf("--fullscreen, --window and --select are mutually exclusive")
	}
	return mode, nil
}

// geometryOverrides collects only the geometry flags that were explicitly
// given, so queried values survive where the operator stayed silent.
func geometryOverrides(cmd *cobra.Command) region.Overrides {
	var ov region.Overrides
	if cmd.Flags().Changed("left") {
		ov.Left = &flagLeft
	}
	if cmd.Flags().Changed("top") {
		ov.Top = &flagTop
	}
	if cmd.Flags().Changed("width") {
		ov.Width = &flagWidth
	}
	if cmd.Flags().Changed("height") {
		ov.Height = &flagHeight
	}
	return ov
}

func runRecord(cmd *cobra.Command, args []string) error {
	outputPath := args[0]

	// Config manager guarantees the defaults file exists; viper layers the
	// file under any explicitly set flags.
	cfgMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return err
	}
	cfg := cfgMgr.Get()

	viper.SetConfigFile(cfgMgr.GetConfigPath())
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	level := cfg.LogLevel
	if flagDebug {
		level = "debug"
	}
	logger.Init(level, true)
	log := logger.WithComponent("cli")

	// Everything below follows a strict order: all validation and
	// precondition checks happen before the first side effect beyond the
	// optional backup rename.
	mode, err := selectionMode()
	if err != nil {
		return err
	}

	target := postprocess.Detect(outputPath)

	framerate := viper.GetInt("framerate")
	if framerate <= 0 {
		return fmt.Errorf("framerate must be positive, got %d", framerate)
	}
	delay := viper.GetInt("delay_seconds")
	if delay < 0 {
		return fmt.Errorf("delay must be non-negative, got %d", delay)
	}
	maxColors := viper.GetInt("max_colors")
	optimize := viper.GetBool("optimize")
	if target == postprocess.FormatGIF {
		if maxColors < 2 || maxColors > 256 {
			return fmt.Errorf("max-colors must be in 2..256, got %d", maxColors)
		}
	} else {
		// Explicit GIF-only flags are an operator mistake; the same keys
		// coming from the config file are recording defaults and are
		// simply not applied to video targets.
		if cmd.Flags().Changed("optimize") || cmd.Flags().Changed("max-colors") || cmd.Flags().Changed("dither") {
			return fmt.Errorf("--optimize, --max-colors and --dither only apply to GIF output")
		}
		optimize = false
	}
	ov := geometryOverrides(cmd)
	if (ov.Width != nil && *ov.Width <= 0) || (ov.Height != nil && *ov.Height <= 0) {
		return fmt.Errorf("width and height overrides must be positive")
	}
	if (ov.Left != nil && *ov.Left < 0) || (ov.Top != nil && *ov.Top < 0) {
		return fmt.Errorf("left and top overrides must be non-negative")
	}

	// Required external tools, checked before any capture side effect.
	pf := tools.NewPreflight(cfg.Tools.Map())
	required := []string{tools.FFmpeg}
	if mode == region.ModeWindow {
		required = append(required, tools.Xwininfo)
	}
	if optimize {
		required = append(required, tools.Gifsicle)
	}
	if err := pf.Require(required...); err != nil {
		return err
	}
	// Rectangle selection degrades from slop to xwininfo; with neither
	// installed the run must die here, before any side effect.
	if mode == region.ModeRectangle && !pf.Available(tools.Slop) && !pf.Available(tools.Xwininfo) {
		return fmt.Errorf("%w: neither %s nor %s is installed",
			tools.ErrToolMissing, tools.Slop, tools.Xwininfo)
	}

	// The notification daemon is the dialog collaborator; without it there
	// is neither a confirmation prompt nor a stop affordance.
	notifier, err := notify.New()
	if err != nil {
		return fmt.Errorf("%w: notification daemon: %v", tools.ErrToolMissing, err)
	}
	defer notifier.Close()

	// Output collision policy: fail, or rename aside under --force. This is
	// the first side effect of the run; every ToolMissing-class abort
	// happens above it. The rename is not rolled back if the operator
	// cancels later on.
	backup, err := output.Prepare(outputPath, flagForce)
	if err != nil {
		return err
	}
	if backup != "" {
		log.Info().Str("backup", backup).Msg("existing output preserved as backup")
	}

	prompt := notifier.Confirm
	if flagNoConfirm {
		prompt = func(summary, body string) (bool, error) { return true, nil }
	}

	resolver := region.NewResolver(os.Getenv("DISPLAY"), pf, prompt)
	reg, err := resolver.Resolve(mode, ov)
	if err != nil {
		if errors.Is(err, region.ErrCancelled) {
			log.Info().Msg("recording cancelled")
			return nil
		}
		return err
	}

	ok, err := prompt("Start recording?",
		fmt.Sprintf("Record %s at %d fps to %s?", reg, framerate, outputPath))
	if err != nil {
		return fmt.Errorf("confirmation prompt: %w", err)
	}
	if !ok {
		log.Info().Msg("recording cancelled")
		return nil
	}

	// Give the confirmation notification time to leave the screen before
	// the first captured frame.
	if delay > 0 {
		log.Debug().Int("seconds", delay).Msg("pre-capture delay")
		time.Sleep(time.Duration(delay) * time.Second)
	}

	// GIF output records to an intermediate video first. The transcode
	// consumes it; the defer covers the paths that never reach the
	// transcode (start failure, early capture exit).
	capturePath := outputPath
	if target == postprocess.FormatGIF {
		tmp, err := tempVideo()
		if err != nil {
			return err
		}
		capturePath = tmp
		defer os.Remove(tmp)
	}

	sess, err := capture.Start(capture.Config{
		Region:     reg,
		Framerate:  framerate,
		ShowCursor: viper.GetBool("show_cursor"),
		Display:    os.Getenv("DISPLAY"),
		FFmpeg:     pf.Path(tools.FFmpeg),
		OutputPath: capturePath,
	})
	if err != nil {
		return err
	}
	started := time.Now()

	stopClicked, closeStopNote, err := notifier.StopButton("Recording",
		fmt.Sprintf("Recording %s. Click to stop.", reg))
	if err != nil {
		// No stop affordance: kill the session rather than record forever.
		_ = sess.Stop()
		return fmt.Errorf("stop notification: %w", err)
	}
	defer closeStopNote()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctrlStop, ctrlShutdown := startControlServer(viper.GetInt("control_port"), sess, outputPath, started)
	defer ctrlShutdown()

	// The single suspension point: wait for an operator stop trigger or for
	// the capture process to die on its own.
	select {
	case <-stopClicked:
		log.Info().Msg("stop notification clicked")
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("stop signal received")
		go func() {
			<-sigCh
			log.Error().Msg("second signal, aborting")
			os.Exit(130)
		}()
	case <-ctrlStop:
		log.Info().Msg("stop requested via control API")
	case <-sess.Done():
	}

	var errs *multierror.Error

	if err := sess.Stop(); err != nil {
		errs = multierror.Append(errs, err)
		if errors.Is(err, capture.ErrExitedEarly) {
			// The container may be truncated; don't feed it downstream.
			log.Error().Msg("skipping post-processing")
			return errs.ErrorOrNil()
		}
	}

	proc := postprocess.NewProcessor(pf.Path(tools.FFmpeg), pf.Path(tools.Gifsicle))
	if err := proc.Process(postprocess.Spec{
		InputPath:  capturePath,
		OutputPath: outputPath,
		Target:     target,
		MaxColors:  maxColors,
		Dither:     viper.GetBool("dither"),
		Optimize:   optimize,
	}); err != nil {
		errs = multierror.Append(errs, err)
	}

	if errs.ErrorOrNil() == nil {
		log.Info().Str("output", outputPath).Dur("duration", time.Since(started)).Msg("recording finished")
	}
	return errs.ErrorOrNil()
}

// startControlServer optionally serves the local stop/status API. It returns
// a channel that fires on a stop request and a shutdown func; both are inert
// when the server is disabled.
func startControlServer(port int, sess *capture.Session, outputPath string, started time.Time) (<-chan struct{}, func()) {
	if port <= 0 {
		ch := make(chan struct{})
		return ch, func() {}
	}

	stopCh := make(chan struct{})
	var once sync.Once

	srv := control.NewServer(
		func() control.Status {
			return control.Status{
				State:      string(sess.State()),
				OutputPath: outputPath,
				Pid:        sess.Pid(),
				ElapsedSec: int(time.Since(started).Seconds()),
			}
		},
		func() { once.Do(func() { close(stopCh) }) },
	)

	go func() {
		if err := srv.Start(port); err != nil {
			logger.WithComponent("control").Error().Err(err).Msg("control server failed")
		}
	}()

	return stopCh, func() { _ = srv.Shutdown() }
}

func tempVideo() (string, error) {
	f, err := os.CreateTemp("", "screenrec-*.mp4")
	if err != nil {
		return "", fmt.Errorf("create intermediate video: %w", err)
	}
	name := f.Name()
	f.Close()
	// ffmpeg recreates it; only the reserved name matters.
	os.Remove(name)
	return name, nil
}

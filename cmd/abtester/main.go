// Command abtester plays one live stream through two audio processors and
// switches between them at block boundaries, keeping their parameters in
// step.
//
// Usage:
//
//	abtester [flags] [source-A source-B]
//
// Sources are plugin binaries (.so, .dylib, .dll, .vst3) or schematics
// (.schx, .json, .yaml, .yml). Positional sources override the slots of
// the -config file.
//
// Examples:
//
//	abtester presets/crunch.yaml presets/clean.json
//	abtester -config session.yaml -midi launchkey
//	abtester -backend headless -duration 10s a.yaml b.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cwbudde/algo-vecmath/cpu"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/cwbudde/algo-abtest/abtest/factory"
	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/abtest/paramsync"
	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/abtest/router"
	"github.com/cwbudde/algo-abtest/abtest/session"
	"github.com/cwbudde/algo-abtest/internal/config"
	"github.com/cwbudde/algo-abtest/internal/device"
	"github.com/cwbudde/algo-abtest/internal/pluginabi"
)

type flags struct {
	config    string
	backend   string
	input     string
	rate      float64
	block     int
	channels  int
	crossfade bool
	unlinked  bool
	midiPort  string
	logLevel  string
	duration  time.Duration
	debug     bool
}

func main() {
	var f flags

	flag.StringVar(&f.config, "config", "", "session YAML file")
	flag.StringVar(&f.backend, "backend", "", "audio backend: portaudio, oto or headless")
	flag.StringVar(&f.input, "input", "", "input: capture (portaudio only), sine, noise or silence")
	flag.Float64Var(&f.rate, "rate", 0, "sample rate in Hz")
	flag.IntVar(&f.block, "block", 0, "frames per block")
	flag.IntVar(&f.channels, "channels", 0, "channel count (1 or 2)")
	flag.BoolVar(&f.crossfade, "crossfade", false, "crossfade over one block when switching")
	flag.BoolVar(&f.unlinked, "unlinked", false, "start with editor changes kept per processor")
	flag.StringVar(&f.midiPort, "midi", "", "open the MIDI input whose name contains this")
	flag.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	flag.DurationVar(&f.duration, "duration", 0, "stop after this long (0 runs until q or interrupt)")
	flag.BoolVar(&f.debug, "debug", false, "debug logging with source locations")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: abtester [flags] [source-A source-B]\n\n")
		fmt.Fprintf(os.Stderr, "Compares two audio processors on one live stream.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n%s", helpText)
	}
	flag.Parse()

	cfg, err := loadConfig(f, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, f); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag and
// positional overrides.
func loadConfig(f flags, args []string) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return cfg, err
		}
	}

	if f.backend != "" {
		cfg.Device.Backend = f.backend
	}
	if f.input != "" {
		cfg.Device.Input = f.input
	}
	if f.rate > 0 {
		cfg.Device.SampleRate = f.rate
	}
	if f.block > 0 {
		cfg.Device.BlockSize = f.block
	}
	if f.channels > 0 {
		cfg.Device.Channels = f.channels
	}
	if f.crossfade {
		cfg.Routing.Crossfade = true
	}
	if f.unlinked {
		cfg.Params.Unlinked = true
	}
	if f.midiPort != "" {
		cfg.MIDI.Enabled = true
		cfg.MIDI.Port = f.midiPort
	}
	if f.debug {
		cfg.LogLevel = "debug"
	} else if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}

	switch len(args) {
	case 0:
	case 2:
		cfg.Slots.A, cfg.Slots.B = args[0], args[1]
	default:
		return cfg, fmt.Errorf("want two sources, got %d", len(args))
	}

	if cfg.Slots.A == "" || cfg.Slots.B == "" {
		return cfg, errors.New("two sources are required (positional or slots in -config)")
	}

	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.Level()

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}))
}

func run(cfg config.Config, f flags) error {
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	feat := cpu.DetectFeatures()
	logger.Info("cpu features", "arch", feat.Architecture, "sse2", feat.HasSSE2, "avx2", feat.HasAVX2, "neon", feat.HasNEON)

	ctl, err := newController(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.duration)
		defer cancel()
	}

	runErr := serve(ctx, cfg, ctl, logger)

	st := ctl.Router().Stats()
	logger.Info("session finished",
		"blocks", st.Blocks, "pass_through", st.PassThrough, "faults", st.Faults,
		"switches", st.Switches, "suppressed", ctl.Synchronizer().Suppressed())

	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return errors.Join(runErr, ctl.Close(closeCtx))
}

// newController wires the factory, router and synchronizer options from
// cfg into a session controller.
func newController(cfg config.Config, logger *slog.Logger) (*session.Controller, error) {
	fac := factory.New(
		factory.WithLogger(logger),
		factory.WithLoader(pluginabi.NewLoader(pluginabi.WithLogger(logger))),
	)

	return session.New(fac,
		session.WithLogger(logger),
		session.WithDevice(session.Device{
			SampleRate: cfg.Device.SampleRate,
			BlockSize:  cfg.Device.BlockSize,
			Channels:   cfg.Device.Channels,
		}),
		session.WithRouterOptions(router.WithLogger(logger), router.WithCrossfade(cfg.Routing.Crossfade)),
		session.WithSyncOptions(
			paramsync.WithLogger(logger),
			paramsync.WithExclude(func(p processor.Parameter) bool { return cfg.Excluded(p.ID, p.Name) }),
		),
	)
}

// start loads both slots and applies the routing and linking settings.
func start(ctx context.Context, cfg config.Config, ctl *session.Controller) error {
	if err := ctl.LoadBoth(ctx, cfg.Resolve(cfg.Slots.A), cfg.Resolve(cfg.Slots.B)); err != nil {
		return err
	}

	if err := ctl.PrepareError(); err != nil {
		slog.Warn("processor passes audio through", "err", err)
	}

	ctl.Synchronizer().SetLinked(!cfg.Params.Unlinked)

	slot := router.SlotA
	if strings.EqualFold(cfg.Routing.Start, "B") {
		slot = router.SlotB
	}

	return ctl.Select(slot)
}

// serve loads the sources, opens the device and runs the stream next to
// the keyboard until the context ends or q is pressed.
func serve(ctx context.Context, cfg config.Config, ctl *session.Controller, logger *slog.Logger) error {
	if err := start(ctx, cfg, ctl); err != nil {
		return err
	}

	opts := []device.Option{device.WithLogger(logger)}

	if cfg.MIDI.Enabled {
		q := midi.NewQueue(cfg.MIDI.QueueCapacity)

		in, err := device.OpenMIDI(cfg.MIDI.Port, q, logger)
		if err != nil {
			logger.Warn("MIDI input disabled", "err", err)
		} else {
			defer func() {
				if err := in.Close(); err != nil {
					logger.Warn("MIDI close failed", "err", err)
				}
				if n := q.Dropped(); n > 0 {
					logger.Warn("MIDI messages dropped", "count", n)
				}
			}()

			opts = append(opts, device.WithMIDI(q))
		}
	}

	stream, err := device.Open(cfg.Device, ctl, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out, restore := terminal(logger)
	defer restore()

	a := newApp(ctl, out, logger)
	fmt.Fprint(out, helpText)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return stream.Run(gctx) })
	g.Go(func() error {
		if err := a.keyLoop(gctx, readKeys(os.Stdin)); errors.Is(err, errQuit) {
			cancel()
		}

		return nil
	})

	return g.Wait()
}

// terminal puts stdin into raw mode when it is a terminal and returns the
// writer for command output.
func terminal(logger *slog.Logger) (io.Writer, func()) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return os.Stdout, func() {}
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		logger.Warn("raw terminal unavailable", "err", err)
		return os.Stdout, func() {}
	}

	return crlf{w: os.Stdout}, func() {
		if err := term.Restore(fd, state); err != nil {
			logger.Warn("terminal restore failed", "err", err)
		}
	}
}

// readKeys delivers single bytes from r until it fails. The reader
// goroutine is left blocked on exit; the process ends right after.
func readKeys(r io.Reader) <-chan byte {
	keys := make(chan byte)

	go func() {
		defer close(keys)

		var b [1]byte
		for {
			if _, err := r.Read(b[:]); err != nil {
				return
			}

			keys <- b[0]
		}
	}()

	return keys
}

//go:build !headless

package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/cwbudde/algo-abtest/internal/config"
)

// paStream runs a PortAudio default stream. With capture input it opens
// the duplex stream; otherwise output only, fed by the synthetic source.
type paStream struct {
	*engine
}

func newPortAudio(e *engine) (Stream, error) {
	return &paStream{engine: e}, nil
}

func (s *paStream) Run(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: portaudio: %w", ErrUnavailable, err)
	}
	defer portaudio.Terminate()

	inputs := 0
	if s.cfg.Input == config.InputCapture {
		inputs = s.cfg.Channels
	}

	stream, err := portaudio.OpenDefaultStream(inputs, s.cfg.Channels, s.cfg.SampleRate, s.cfg.BlockSize, s.callback)
	if err != nil {
		return fmt.Errorf("%w: portaudio: open: %w", ErrUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		return errors.Join(fmt.Errorf("%w: portaudio: start: %w", ErrUnavailable, err), stream.Close())
	}

	s.logger.Info("portaudio stream started",
		"sample_rate", s.cfg.SampleRate, "frames", s.cfg.BlockSize, "channels", s.cfg.Channels, "input", s.cfg.Input)

	<-ctx.Done()

	err = errors.Join(stream.Stop(), stream.Close())
	s.logger.Info("portaudio stream stopped", "blocks", s.Blocks())

	return err
}

func (s *paStream) callback(in, out []float32) {
	if len(in) == 0 {
		s.render(out)
		return
	}

	s.process(in, out)
}

//go:build !headless

package device

import (
	"context"
	"fmt"

	"github.com/ebitengine/oto/v3"
)

// otoStream plays rendered blocks through Oto. Oto pulls from the reader
// on its own goroutine, which becomes the audio goroutine.
type otoStream struct {
	*engine
}

func newOto(e *engine) (Stream, error) {
	return &otoStream{engine: e}, nil
}

func (s *otoStream) Run(ctx context.Context) error {
	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(s.cfg.SampleRate),
		ChannelCount: s.cfg.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   2 * s.period(),
	})
	if err != nil {
		return fmt.Errorf("%w: oto: %w", ErrUnavailable, err)
	}
	<-ready

	player := octx.NewPlayer(newBlockReader(s.engine))
	player.Play()
	s.logger.Info("oto stream started", "sample_rate", s.cfg.SampleRate, "channels", s.cfg.Channels, "input", s.cfg.Input)

	<-ctx.Done()

	player.Pause()
	s.logger.Info("oto stream stopped", "blocks", s.Blocks())

	return player.Close()
}

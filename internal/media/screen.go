package media

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ScreenShare publishes a screen source on its own track. Done is closed
// when the source ends by itself or Stop is called.
type ScreenShare struct {
	track  *LocalTrack
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func StartScreenShare(ctx context.Context, src Source) (*ScreenShare, error) {
	t, err := NewLocalTrack(src.Codec(), "screen", "screen-"+uuid.NewString())
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &ScreenShare{track: t, cancel: cancel, done: make(chan struct{})}
	logger := log.With().Str("module", "media").Str("kind", "screen").Logger()
	go func() {
		defer close(s.done)
		if err := Pump(ctx, t, src, &logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("screen pump stopped")
		}
		t.Stop()
	}()
	return s, nil
}

func (s *ScreenShare) Track() *LocalTrack { return s.track }

func (s *ScreenShare) Done() <-chan struct{} { return s.done }

func (s *ScreenShare) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

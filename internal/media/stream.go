package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrNoDevice = errors.New("no capture source configured")

// StreamConfig names the files standing in for camera and microphone.
type StreamConfig struct {
	VideoFile string
	AudioFile string
	Loop      bool
}

// LocalStream is the participant's outbound camera and microphone.
type LocalStream struct {
	ID          string
	Video       *LocalTrack
	Audio       *LocalTrack
	Placeholder bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func newStream(ctx context.Context, video, audio Source, placeholder bool) (*LocalStream, error) {
	id := uuid.NewString()
	vcodec := CodecVP8
	if video != nil {
		vcodec = video.Codec()
	}
	vt, err := NewLocalTrack(vcodec, "video", id)
	if err != nil {
		return nil, err
	}
	at, err := NewLocalTrack(CodecOpus, "audio", id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &LocalStream{ID: id, Video: vt, Audio: at, Placeholder: placeholder, cancel: cancel}
	s.start(ctx, vt, video, "video")
	s.start(ctx, at, audio, "audio")
	return s, nil
}

func (s *LocalStream) start(ctx context.Context, t *LocalTrack, src Source, kind string) {
	if src == nil {
		return
	}
	logger := log.With().Str("module", "media").Str("stream", s.ID).Str("kind", kind).Logger()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := Pump(ctx, t, src, &logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("pump stopped")
		}
	}()
}

// OpenFileStream opens the configured capture files. Any failure is returned
// so the caller can fall back to a placeholder.
func OpenFileStream(ctx context.Context, cfg StreamConfig) (*LocalStream, error) {
	if cfg.VideoFile == "" || cfg.AudioFile == "" {
		return nil, ErrNoDevice
	}
	open := func(path string, fn func(string) (Source, error)) (Source, error) {
		if cfg.Loop {
			return Loop(func() (Source, error) { return fn(path) })
		}
		return fn(path)
	}
	video, err := open(cfg.VideoFile, OpenIVF)
	if err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}
	audio, err := open(cfg.AudioFile, OpenOgg)
	if err != nil {
		_ = video.Close()
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	return newStream(ctx, video, audio, false)
}

// PlaceholderStream publishes silent audio and a video track that never
// carries frames, which remote peers render as black.
func PlaceholderStream(ctx context.Context) (*LocalStream, error) {
	return newStream(ctx, nil, Silence(), true)
}

func (s *LocalStream) Track(kind webrtc.RTPCodecType) *LocalTrack {
	if kind == webrtc.RTPCodecTypeVideo {
		return s.Video
	}
	return s.Audio
}

// Stop ends the pumps and marks both tracks stopped.
func (s *LocalStream) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.Video.Stop()
		s.Audio.Stop()
		s.wg.Wait()
		log.Info().Str("module", "media").Str("stream", s.ID).Msg("local stream stopped")
	})
}

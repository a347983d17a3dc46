package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog"
)

// Source produces paced media samples. NextSample returns io.EOF when the
// source is exhausted.
type Source interface {
	Codec() webrtc.RTPCodecCapability
	NextSample() (media.Sample, error)
	Close() error
}

// Pump writes samples from src into t until the source ends, the track is
// stopped or ctx is done. Each sample is followed by a wait of its duration.
func Pump(ctx context.Context, t *LocalTrack, src Source, logger *zerolog.Logger) error {
	defer src.Close()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		s, err := src.NextSample()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug().Msg("source ended")
				return nil
			}
			return err
		}
		if err := t.WriteSample(s); err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			logger.Warn().Err(err).Msg("write sample")
		}
		timer.Reset(s.Duration)
	}
}

var ivfCodecs = map[string]webrtc.RTPCodecCapability{
	"VP80": CodecVP8,
	"VP90": CodecVP9,
	"AV01": CodecAV1,
}

type ivfSource struct {
	f        *os.File
	r        *ivfreader.IVFReader
	codec    webrtc.RTPCodecCapability
	duration time.Duration
}

// OpenIVF reads video frames from an IVF file.
func OpenIVF(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, header, err := ivfreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ivf %s: %w", path, err)
	}
	codec, ok := ivfCodecs[header.FourCC]
	if !ok {
		_ = f.Close()
		return nil, fmt.Errorf("ivf %s: unsupported codec %q", path, header.FourCC)
	}
	d := 33 * time.Millisecond
	if header.TimebaseDenominator != 0 {
		d = time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
	}
	return &ivfSource{f: f, r: r, codec: codec, duration: d}, nil
}

func (s *ivfSource) Codec() webrtc.RTPCodecCapability { return s.codec }

func (s *ivfSource) NextSample() (media.Sample, error) {
	frame, _, err := s.r.ParseNextFrame()
	if err != nil {
		return media.Sample{}, err
	}
	return media.Sample{Data: frame, Duration: s.duration}, nil
}

func (s *ivfSource) Close() error { return s.f.Close() }

type oggSource struct {
	f           *os.File
	r           *oggreader.OggReader
	lastGranule uint64
}

// OpenOgg reads Opus pages from an Ogg file.
func OpenOgg(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, _, err := oggreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ogg %s: %w", path, err)
	}
	return &oggSource{f: f, r: r}, nil
}

func (s *oggSource) Codec() webrtc.RTPCodecCapability { return CodecOpus }

func (s *oggSource) NextSample() (media.Sample, error) {
	page, header, err := s.r.ParseNextPage()
	if err != nil {
		return media.Sample{}, err
	}
	samples := header.GranulePosition - s.lastGranule
	s.lastGranule = header.GranulePosition
	d := time.Duration(float64(samples) / 48000 * float64(time.Second))
	return media.Sample{Data: page, Duration: d}, nil
}

func (s *oggSource) Close() error { return s.f.Close() }

type loopSource struct {
	open func() (Source, error)
	cur  Source
}

// Loop restarts a source from the beginning whenever it ends.
func Loop(open func() (Source, error)) (Source, error) {
	cur, err := open()
	if err != nil {
		return nil, err
	}
	return &loopSource{open: open, cur: cur}, nil
}

func (l *loopSource) Codec() webrtc.RTPCodecCapability { return l.cur.Codec() }

func (l *loopSource) NextSample() (media.Sample, error) {
	s, err := l.cur.NextSample()
	if !errors.Is(err, io.EOF) {
		return s, err
	}
	_ = l.cur.Close()
	next, err := l.open()
	if err != nil {
		return media.Sample{}, err
	}
	l.cur = next
	return l.cur.NextSample()
}

func (l *loopSource) Close() error { return l.cur.Close() }

// opusSilence is one 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

type silenceSource struct{}

// Silence produces Opus silence forever.
func Silence() Source { return silenceSource{} }

func (silenceSource) Codec() webrtc.RTPCodecCapability { return CodecOpus }

func (silenceSource) NextSample() (media.Sample, error) {
	return media.Sample{Data: opusSilence, Duration: 20 * time.Millisecond}, nil
}

func (silenceSource) Close() error { return nil }

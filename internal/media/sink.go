package media

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// ReadFunc reads one RTP packet from a remote track.
type ReadFunc func(b []byte) (int, error)

// TrackReader adapts a pion remote track.
func TrackReader(t *webrtc.TrackRemote) ReadFunc {
	return func(b []byte) (int, error) {
		n, _, err := t.Read(b)
		return n, err
	}
}

// Sink drains one remote track and keeps receive counters. The application
// has no renderer, so received media is counted and discarded.
type Sink struct {
	Kind webrtc.RTPCodecType

	packets  atomic.Uint64
	bytes    atomic.Uint64
	lastRecv atomic.Int64
	done     chan struct{}
}

func NewSink(kind webrtc.RTPCodecType) *Sink {
	return &Sink{Kind: kind, done: make(chan struct{})}
}

// Run reads until the track fails or ctx is done.
func (s *Sink) Run(ctx context.Context, read ReadFunc, logger *zerolog.Logger) {
	defer close(s.done)
	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("sink ctx done")
			return
		default:
		}
		n, err := read(buf)
		if err != nil {
			logger.Debug().Err(err).Msg("sink read stopped")
			return
		}
		s.packets.Add(1)
		s.bytes.Add(uint64(n))
		s.lastRecv.Store(time.Now().UnixNano())
	}
}

func (s *Sink) Done() <-chan struct{} { return s.done }

type SinkStats struct {
	Kind     webrtc.RTPCodecType
	Packets  uint64
	Bytes    uint64
	LastRecv time.Time
}

func (s *Sink) Stats() SinkStats {
	st := SinkStats{Kind: s.Kind, Packets: s.packets.Load(), Bytes: s.bytes.Load()}
	if ns := s.lastRecv.Load(); ns != 0 {
		st.LastRecv = time.Unix(0, ns)
	}
	return st
}

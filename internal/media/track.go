// Package media provides the local tracks a participant publishes and the
// sinks that consume remote tracks.
package media

import (
	"io"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateStopped
)

var (
	CodecVP8  = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	CodecVP9  = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9, ClockRate: 90000}
	CodecAV1  = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeAV1, ClockRate: 90000}
	CodecOpus = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
)

// LocalTrack is an outbound sample track with an enabled flag. While muted,
// samples are dropped instead of written, so no renegotiation is needed.
type LocalTrack struct {
	track *webrtc.TrackLocalStaticSample
	state atomic.Int32

	written atomic.Uint64
	dropped atomic.Uint64
}

func NewLocalTrack(codec webrtc.RTPCodecCapability, id, streamID string) (*LocalTrack, error) {
	t, err := webrtc.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, err
	}
	return &LocalTrack{track: t}, nil
}

// Track is what gets attached to a PeerConnection.
func (t *LocalTrack) Track() webrtc.TrackLocal { return t.track }

func (t *LocalTrack) Kind() webrtc.RTPCodecType { return t.track.Kind() }

func (t *LocalTrack) State() TrackState { return TrackState(t.state.Load()) }

func (t *LocalTrack) Enabled() bool { return t.State() == TrackStateOk }

// SetEnabled flips between Ok and Muted. A stopped track stays stopped.
func (t *LocalTrack) SetEnabled(on bool) {
	from, to := TrackStateOk, TrackStateMuted
	if on {
		from, to = TrackStateMuted, TrackStateOk
	}
	t.state.CompareAndSwap(int32(from), int32(to))
}

func (t *LocalTrack) Stop() { t.state.Store(int32(TrackStateStopped)) }

func (t *LocalTrack) WriteSample(s media.Sample) error {
	switch t.State() {
	case TrackStateStopped:
		return io.ErrClosedPipe
	case TrackStateMuted:
		t.dropped.Add(1)
		return nil
	}
	if err := t.track.WriteSample(s); err != nil {
		return err
	}
	t.written.Add(1)
	return nil
}

// Counters reports how many samples were written and dropped.
func (t *LocalTrack) Counters() (written, dropped uint64) {
	return t.written.Load(), t.dropped.Load()
}

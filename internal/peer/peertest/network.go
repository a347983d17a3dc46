// Package peertest provides in-memory peer transports and signalers for
// exercising peer sessions without a network.
package peertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

var (
	ErrNoRemoteDescription = errors.New("remote description not set")
	ErrClosed              = errors.New("transport closed")
	ErrNotOpen             = errors.New("data channel not open")
)

type pairKey struct {
	local, remote domain.MemberID
}

// Network links transports created by different factories. The transport of
// (A, B) talks to the transport of (B, A).
type Network struct {
	mu     sync.Mutex
	ends   map[pairKey]*Transport
	offers map[pairKey]int
	all    []*Transport
}

func NewNetwork() *Network {
	return &Network{
		ends:   make(map[pairKey]*Transport),
		offers: make(map[pairKey]int),
	}
}

// Factory returns a transport factory for the given local member. The local
// id may be set after construction, once the signaling server assigned it.
func (n *Network) Factory() *Factory {
	return &Factory{net: n}
}

// Offers reports how many offers local created towards remote.
func (n *Network) Offers(local, remote domain.MemberID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.offers[pairKey{local, remote}]
}

// Transport returns the latest transport local created for remote.
func (n *Network) Transport(local, remote domain.MemberID) *Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ends[pairKey{local, remote}]
}

// Created counts every transport created so far.
func (n *Network) Created() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.all)
}

func (n *Network) register(t *Transport) {
	n.mu.Lock()
	n.ends[t.key] = t
	n.all = append(n.all, t)
	n.mu.Unlock()
}

func (n *Network) countOffer(k pairKey) {
	n.mu.Lock()
	n.offers[k]++
	n.mu.Unlock()
}

func (n *Network) other(t *Transport) *Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	o := n.ends[pairKey{t.key.remote, t.key.local}]
	if o == nil || o.isClosed() {
		return nil
	}
	return o
}

type Factory struct {
	net *Network

	mu    sync.Mutex
	local domain.MemberID
}

var _ core.PeerTransportFactory = (*Factory)(nil)

func (f *Factory) SetLocal(id domain.MemberID) {
	f.mu.Lock()
	f.local = id
	f.mu.Unlock()
}

func (f *Factory) NewPeerTransport(remote domain.MemberID) (core.PeerTransport, error) {
	f.mu.Lock()
	local := f.local
	f.mu.Unlock()
	if local == "" {
		return nil, errors.New("peertest: local id not set")
	}
	t := newTransport(f.net, pairKey{local, remote})
	f.net.register(t)
	return t, nil
}

// Transport is an in-memory PeerTransport. Callbacks run on one goroutine
// per transport, in the order they were posted.
type Transport struct {
	net *Network
	key pairKey

	queue chan func()
	done  chan struct{}

	mu         sync.Mutex
	closed     bool
	localDesc  bool
	remoteDesc bool
	open       bool
	applied    []webrtc.ICECandidateInit
	tracks     []webrtc.TrackLocal
	video      webrtc.TrackLocal
	onICE      func(webrtc.ICECandidateInit)
	onState    func(webrtc.PeerConnectionState)
	onDataOpen func()
	onData     func([]byte)
}

var _ core.PeerTransport = (*Transport)(nil)

func newTransport(n *Network, k pairKey) *Transport {
	t := &Transport{
		net:   n,
		key:   k,
		queue: make(chan func(), 256),
		done:  make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Transport) run() {
	for {
		select {
		case fn := <-t.queue:
			fn()
		case <-t.done:
			return
		}
	}
}

func (t *Transport) post(fn func()) {
	select {
	case t.queue <- fn:
	case <-t.done:
	}
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) candidate() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: fmt.Sprintf("candidate:%s-%s", t.key.local, t.key.remote)}
}

func (t *Transport) trickle() {
	c := t.candidate()
	t.post(func() {
		t.mu.Lock()
		fn := t.onICE
		t.mu.Unlock()
		if fn != nil {
			fn(c)
		}
	})
}

func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return webrtc.SessionDescription{}, ErrClosed
	}
	t.localDesc = true
	t.mu.Unlock()
	t.net.countOffer(t.key)
	t.trickle()
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  fmt.Sprintf("offer %s->%s", t.key.local, t.key.remote),
	}, nil
}

func (t *Transport) ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return webrtc.SessionDescription{}, ErrClosed
	}
	t.remoteDesc = true
	t.localDesc = true
	t.mu.Unlock()
	t.trickle()
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  fmt.Sprintf("answer %s->%s", t.key.local, t.key.remote),
	}, nil
}

// ApplyAnswer completes negotiation and connects both ends.
func (t *Transport) ApplyAnswer(webrtc.SessionDescription) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.remoteDesc = true
	t.mu.Unlock()
	t.connect()
	if o := t.net.other(t); o != nil {
		o.connect()
	}
	return nil
}

func (t *Transport) connect() {
	t.mu.Lock()
	t.open = true
	t.mu.Unlock()
	t.post(func() {
		t.mu.Lock()
		state, open := t.onState, t.onDataOpen
		t.mu.Unlock()
		if state != nil {
			state(webrtc.PeerConnectionStateConnected)
		}
		if open != nil {
			open()
		}
	})
}

func (t *Transport) HasRemoteDescription() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remoteDesc
}

func (t *Transport) AddICECandidate(c webrtc.ICECandidateInit) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.remoteDesc {
		return ErrNoRemoteDescription
	}
	t.applied = append(t.applied, c)
	return nil
}

// Applied returns the remote candidates applied so far.
func (t *Transport) Applied() []webrtc.ICECandidateInit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), t.applied...)
}

func (t *Transport) AddLocalTrack(track webrtc.TrackLocal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = append(t.tracks, track)
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		t.video = track
	}
	return nil
}

func (t *Transport) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.video = track
	return nil
}

// Video returns the outbound video track currently in use.
func (t *Transport) Video() webrtc.TrackLocal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.video
}

func (t *Transport) Tracks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracks)
}

func (t *Transport) SendData(data []byte) error {
	t.mu.Lock()
	open := t.open && !t.closed
	t.mu.Unlock()
	if !open {
		return ErrNotOpen
	}
	o := t.net.other(t)
	if o == nil {
		return ErrClosed
	}
	msg := append([]byte(nil), data...)
	o.post(func() {
		o.mu.Lock()
		fn := o.onData
		o.mu.Unlock()
		if fn != nil {
			fn(msg)
		}
	})
	return nil
}

func (t *Transport) DataOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open && !t.closed
}

func (t *Transport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	t.mu.Lock()
	t.onICE = fn
	t.mu.Unlock()
}

func (t *Transport) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	t.mu.Lock()
	t.onState = fn
	t.mu.Unlock()
}

func (t *Transport) OnTrack(func(ctx context.Context, track *webrtc.TrackRemote)) {}

func (t *Transport) OnDataOpen(fn func()) {
	t.mu.Lock()
	t.onDataOpen = fn
	t.mu.Unlock()
}

func (t *Transport) OnData(fn func([]byte)) {
	t.mu.Lock()
	t.onData = fn
	t.mu.Unlock()
}

// Fail reports a transport failure to the owner.
func (t *Transport) Fail() {
	t.post(func() {
		t.mu.Lock()
		fn := t.onState
		t.mu.Unlock()
		if fn != nil {
			fn(webrtc.PeerConnectionStateFailed)
		}
	})
}

func (t *Transport) Closed() bool { return t.isClosed() }

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.open = false
	t.mu.Unlock()
	close(t.done)
	return nil
}

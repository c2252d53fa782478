// Package signaling answers the robot's single WebRTC offer and exposes the
// resulting video stream.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"

	"petcare-console/internal/apperr"
	"petcare-console/internal/bus"
	"petcare-console/internal/metrics"
)

// DefaultSTUN is the public STUN server used when none is configured.
const DefaultSTUN = "stun:stun.l.google.com:19302"

// State is the bridge's negotiation state.
type State string

const (
	StateIdle        State = "idle"
	StateNegotiating State = "negotiating"
	StateAnswered    State = "answered"
	StateStreaming   State = "streaming"
	StateFailed      State = "failed"
	StateClosed      State = "closed"
)

// Description is the wire form of an SDP offer or answer.
type Description struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Stream describes the first inbound media track.
type Stream struct {
	ID      string
	TrackID string
	Kind    string
	Codec   string
}

// Publisher sends the answer back to the robot.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Config tunes the peer connection.
type Config struct {
	// STUNServers are the ICE servers offered to pion. Empty means none,
	// leaving host candidates only.
	STUNServers []string
	// IncludeLoopback gathers 127.0.0.1 candidates, for same-host peers.
	IncludeLoopback bool
	// RecordPath, when set, receives the first VP8 track as an IVF file.
	RecordPath string
}

// Bridge performs at most one offer/answer exchange per lifetime. A failed
// exchange is not retried and later offers are ignored.
type Bridge struct {
	cfg Config
	pub Publisher
	log *slog.Logger

	mu       sync.Mutex
	state    State
	answered bool
	closed   bool
	pc       *webrtc.PeerConnection
	stream   *Stream
	onStream func(Stream)
	onState  func(State)
	wg       sync.WaitGroup
}

// New returns an idle bridge publishing answers through pub.
func New(cfg Config, pub Publisher, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{cfg: cfg, pub: pub, log: log, state: StateIdle}
}

// OnStream registers a callback fired once when the first track arrives.
func (b *Bridge) OnStream(fn func(Stream)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStream = fn
}

// OnState registers a callback fired on every state change.
func (b *Bridge) OnState(fn func(State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onState = fn
}

// State returns the current negotiation state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stream returns the exposed stream, or nil before a track arrived or after
// a failure.
func (b *Bridge) Stream() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return nil
	}
	s := *b.stream
	return &s
}

// HandleOffer answers an offer payload ({"sdp":..., "type":"offer"}). It
// blocks until ICE gathering completes or ctx is done. Offers after the
// first are logged and ignored.
func (b *Bridge) HandleOffer(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	if b.answered {
		b.mu.Unlock()
		b.log.Info("ignoring offer: exchange already performed")
		metrics.RecordSignaling("ignored")
		return nil
	}
	b.answered = true
	b.mu.Unlock()
	b.setState(StateNegotiating)

	if err := b.answer(ctx, payload); err != nil {
		b.fail()
		metrics.RecordSignaling("failed")
		b.log.Warn("signaling failed", "err", err)
		return err
	}
	metrics.RecordSignaling("answered")
	return nil
}

func (b *Bridge) answer(ctx context.Context, payload []byte) error {
	var offer Description
	if err := json.Unmarshal(payload, &offer); err != nil {
		return &apperr.SignalingError{Step: "decode offer", Err: err}
	}
	if offer.Type != "" && offer.Type != "offer" {
		return &apperr.SignalingError{Step: "decode offer", Err: fmt.Errorf("unexpected type %q", offer.Type)}
	}
	if strings.TrimSpace(offer.SDP) == "" {
		return &apperr.SignalingError{Step: "decode offer", Err: errors.New("empty sdp")}
	}

	pc, err := b.newPeerConnection()
	if err != nil {
		return &apperr.SignalingError{Step: "create peer", Err: err}
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = pc.Close()
		return &apperr.SignalingError{Step: "create peer", Err: errors.New("bridge closed")}
	}
	b.pc = pc
	b.mu.Unlock()

	pc.OnTrack(b.handleTrack)
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		b.log.Debug("ice state", "state", state.String())
	})

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := pc.SetRemoteDescription(remote); err != nil {
		return &apperr.SignalingError{Step: "set remote description", Err: err}
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return &apperr.SignalingError{Step: "create answer", Err: err}
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return &apperr.SignalingError{Step: "set local description", Err: err}
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return &apperr.SignalingError{Step: "gather candidates", Err: ctx.Err()}
	}

	local := pc.LocalDescription()
	data, err := json.Marshal(Description{SDP: local.SDP, Type: local.Type.String()})
	if err != nil {
		return &apperr.SignalingError{Step: "encode answer", Err: err}
	}
	if err := b.pub.Publish(bus.TopicAnswer, data); err != nil {
		return &apperr.SignalingError{Step: "publish answer", Err: err}
	}
	b.log.Info("webrtc answer published")

	b.mu.Lock()
	streaming := b.stream != nil
	b.mu.Unlock()
	if !streaming {
		b.setState(StateAnswered)
	}
	return nil
}

func (b *Bridge) newPeerConnection() (*webrtc.PeerConnection, error) {
	return NewPeerConnection(b.cfg)
}

// NewPeerConnection builds a peer with the default codecs and the configured
// ICE servers. Both ends of the video link use it.
func NewPeerConnection(cfg Config) (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{}
	if len(cfg.STUNServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: cfg.STUNServers}}
	}
	settingEngine := webrtc.SettingEngine{}
	if cfg.IncludeLoopback {
		settingEngine.SetIncludeLoopbackCandidate(true)
	}
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine), webrtc.WithMediaEngine(m))
	return api.NewPeerConnection(config)
}

func (b *Bridge) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	b.mu.Lock()
	if b.closed || b.stream != nil {
		b.mu.Unlock()
		b.log.Debug("ignoring extra track", "track", track.ID())
		b.drain(track)
		return
	}
	s := Stream{
		ID:      track.StreamID(),
		TrackID: track.ID(),
		Kind:    track.Kind().String(),
		Codec:   track.Codec().MimeType,
	}
	b.stream = &s
	cb := b.onStream
	b.wg.Add(1)
	b.mu.Unlock()

	b.log.Info("video stream received", "stream", s.ID, "codec", s.Codec)
	b.setState(StateStreaming)
	if cb != nil {
		cb(s)
	}
	defer b.wg.Done()
	if b.cfg.RecordPath != "" && strings.EqualFold(s.Codec, webrtc.MimeTypeVP8) {
		b.record(track)
		return
	}
	b.drain(track)
}

// drain reads and discards RTP until the track ends.
func (b *Bridge) drain(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

func (b *Bridge) record(track *webrtc.TrackRemote) {
	w, err := ivfwriter.New(b.cfg.RecordPath)
	if err != nil {
		b.log.Warn("open video recording", "path", b.cfg.RecordPath, "err", err)
		b.drain(track)
		return
	}
	defer func() {
		if err := w.Close(); err != nil {
			b.log.Warn("close video recording", "err", err)
		}
	}()
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if err := w.WriteRTP(pkt); err != nil {
			b.log.Warn("write video recording", "err", err)
			return
		}
	}
}

func (b *Bridge) fail() {
	b.mu.Lock()
	pc := b.pc
	b.pc = nil
	b.stream = nil
	b.mu.Unlock()
	if pc != nil {
		_ = pc.Close()
	}
	b.setState(StateFailed)
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	if b.closed && s != StateClosed {
		b.mu.Unlock()
		return
	}
	b.state = s
	cb := b.onState
	b.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// Close tears down the peer connection unconditionally. Safe to call more
// than once; no callbacks fire afterwards.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.state = StateClosed
	pc := b.pc
	b.pc = nil
	b.stream = nil
	b.onStream = nil
	b.onState = nil
	b.mu.Unlock()

	var err error
	if pc != nil {
		err = pc.Close()
	}
	b.wg.Wait()
	return err
}

package robotsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"petcare-console/internal/signaling"
)

// frameInterval paces the synthetic feed at 25 fps.
const frameInterval = 40 * time.Millisecond

// keyframe is a minimal VP8 key frame header; receivers only count it.
var keyframe = []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x10, 0x00, 0x10, 0x00}

// Camera is the robot's side of the video link: it offers one VP8 track and
// streams synthetic frames once the console answers.
type Camera struct {
	cfg signaling.Config

	mu       sync.Mutex
	pc       *webrtc.PeerConnection
	track    *webrtc.TrackLocalStaticSample
	answered bool
}

// NewCamera returns a camera that has not offered yet.
func NewCamera(cfg signaling.Config) *Camera {
	return &Camera{cfg: cfg}
}

// Offer builds the peer, adds the track and returns the gathered offer as a
// wire payload.
func (c *Camera) Offer(ctx context.Context) ([]byte, error) {
	pc, err := signaling.NewPeerConnection(c.cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer: %w", err)
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "robot-cam")
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add track: %w", err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		_ = pc.Close()
		return nil, ctx.Err()
	}

	c.mu.Lock()
	if c.pc != nil {
		_ = c.pc.Close()
	}
	c.pc, c.track, c.answered = pc, track, false
	c.mu.Unlock()

	return json.Marshal(signaling.Description{SDP: pc.LocalDescription().SDP, Type: "offer"})
}

// Accept applies the console's answer. Answers after the first are ignored.
func (c *Camera) Accept(payload []byte) error {
	var d signaling.Description
	if err := json.Unmarshal(payload, &d); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	if d.Type != "answer" {
		return fmt.Errorf("unexpected description type %q", d.Type)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc == nil {
		return errors.New("no offer outstanding")
	}
	if c.answered {
		return nil
	}
	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: d.SDP}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	c.answered = true
	return nil
}

// Answered reports whether an answer was applied.
func (c *Camera) Answered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answered
}

// Stream writes frames until ctx is done. Frames written before the answer
// are dropped by the track.
func (c *Camera) Stream(ctx context.Context) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			track := c.track
			c.mu.Unlock()
			if track != nil {
				_ = track.WriteSample(media.Sample{Data: keyframe, Duration: frameInterval})
			}
		}
	}
}

// Close tears the peer down.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc == nil {
		return nil
	}
	err := c.pc.Close()
	c.pc, c.track = nil, nil
	return err
}

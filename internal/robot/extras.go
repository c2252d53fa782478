package robot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"petcare-console/internal/api"
	"petcare-console/internal/notify"
	"petcare-console/internal/signaling"
)

// DefaultVoiceTraining is how long cloning the user's voice takes.
const DefaultVoiceTraining = 3 * time.Second

// Extras is the session's local media state.
type Extras struct {
	VideoOn        bool
	Recording      bool
	Training       bool
	VoiceCloned    bool
	UseClonedVoice bool
}

// VideoStatus combines the video toggle with the signaling outcome.
type VideoStatus struct {
	On     bool
	State  signaling.State
	Stream *signaling.Stream
}

// Extras returns the media state.
func (s *Session) Extras() Extras {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extras
}

// Video reports the video panel state. Without a bridge the state is idle.
func (s *Session) Video() VideoStatus {
	v := VideoStatus{On: s.Extras().VideoOn, State: signaling.StateIdle}
	if s.deps.Video != nil {
		v.State = s.deps.Video.State()
		v.Stream = s.deps.Video.Stream()
	}
	return v
}

// ToggleVideo flips whether the feed is shown and returns the new value.
func (s *Session) ToggleVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.extras.VideoOn
	}
	s.extras.VideoOn = !s.extras.VideoOn
	return s.extras.VideoOn
}

// SendTTS asks the robot to speak. Blank text is ignored; request failures
// are logged and swallowed.
func (s *Session) SendTTS(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" || s.isClosed() {
		return
	}
	ex := s.Extras()
	s.raise(notify.Draft{
		Type:    notify.TypeRobot,
		Title:   "Speaking",
		Message: fmt.Sprintf("The robot says: %q", text),
		Link:    "/",
	})
	if s.deps.Speaker == nil {
		return
	}
	req := api.TTSRequest{Text: text, UseClonedVoice: ex.VoiceCloned && ex.UseClonedVoice}
	if err := s.deps.Speaker.Speak(ctx, req); err != nil {
		s.log.Warn("tts request failed", "err", err)
	}
}

// StartWalkieTalkie begins a push-to-talk recording.
func (s *Session) StartWalkieTalkie() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.extras.Recording = true
	}
}

// StopWalkieTalkie ends the recording and reports whether one was running;
// only then is the transmission announced.
func (s *Session) StopWalkieTalkie() bool {
	s.mu.Lock()
	was := s.extras.Recording && !s.closed
	s.extras.Recording = false
	s.mu.Unlock()
	if !was {
		return false
	}
	s.raise(notify.Draft{
		Type:    notify.TypeRobot,
		Title:   "Voice sent",
		Message: "Your voice was transmitted to the robot.",
		Link:    "/",
	})
	return true
}

// TrainVoice starts cloning the user's voice. When training finishes the
// cloned voice becomes available and selected. It reports false when a
// training run is already in progress.
func (s *Session) TrainVoice() bool {
	s.mu.Lock()
	if s.closed || s.extras.Training {
		s.mu.Unlock()
		return false
	}
	s.extras.Training = true
	s.mu.Unlock()

	return s.spawn(func() {
		t := time.NewTimer(s.opts.VoiceTraining)
		defer t.Stop()
		select {
		case <-s.done:
			return
		case <-t.C:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.extras.Training = false
		s.extras.VoiceCloned = true
		s.extras.UseClonedVoice = true
		s.log.Info("voice training complete")
	})
}

// SetUseClonedVoice selects the cloned voice for TTS. It has no effect
// until a voice has been trained.
func (s *Session) SetUseClonedVoice(use bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extras.VoiceCloned {
		s.extras.UseClonedVoice = use
	}
}

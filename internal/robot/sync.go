package robot

import (
	"context"
	"time"

	"petcare-console/internal/metrics"
	"petcare-console/internal/telemetry"
)

// handleStatus folds one pushed status message into the state. Malformed
// payloads are logged and dropped.
func (s *Session) handleStatus(payload []byte) {
	u, err := telemetry.DecodeUpdate(payload)
	if err != nil {
		s.log.Warn("bad status message", "err", err)
		return
	}
	if u == nil {
		return
	}
	s.applyPush(*u)
}

func (s *Session) applyPush(u telemetry.StatusUpdate) {
	at := s.now()
	applied := s.update(telemetry.SourceRemote, func(st *telemetry.State) bool {
		return st.ApplyRemote(u, at)
	})
	if applied {
		snap := s.Snapshot()
		metrics.RecordStatus(string(StrategyPush), snap.Online, snap.Battery)
	}
}

// poll fetches immediately and then every PollInterval until ctx is done.
// A failed fetch marks the robot offline and leaves the rest stale.
func (s *Session) poll(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		s.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) pollOnce(ctx context.Context) {
	if s.deps.Poller == nil || ctx.Err() != nil {
		return
	}
	u, err := s.deps.Poller.LatestStatus(ctx)
	if ctx.Err() != nil {
		return
	}
	at := s.now()
	if err != nil {
		metrics.PollFailuresTotal.Inc()
		s.log.Debug("status poll failed", "err", err)
		s.update(telemetry.SourceRemote, func(st *telemetry.State) bool {
			return st.SetOnline(false, telemetry.SourceRemote, at)
		})
		metrics.SetOnline(false)
		return
	}
	var upd telemetry.StatusUpdate
	if u != nil {
		upd = *u
	}
	s.update(telemetry.SourceRemote, func(st *telemetry.State) bool {
		return st.ApplyPoll(upd, at)
	})
	snap := s.Snapshot()
	metrics.RecordStatus(string(StrategyPoll), snap.Online, snap.Battery)
}

// Package robotsim is a fake pet-care robot for local use. It speaks the
// robot's side of the bus: status out, commands in, and a video offer.
package robotsim

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"petcare-console/internal/bus"
	"petcare-console/internal/logging"
	"petcare-console/internal/signaling"
	"petcare-console/internal/telemetry"
)

const (
	DefaultTick  = time.Second
	DefaultDrain = 0.1
	DefaultStep  = 2.0

	chargeThreshold = 15.0
	chargePerTick   = 1.0
	baseTemperature = 36.0
)

// Options tunes the fake robot.
type Options struct {
	Tick         time.Duration
	DrainPerTick float64
	// Step is the distance covered per tick at full deflection.
	Step float64
	// Video enables the camera offer.
	Video  bool
	Camera signaling.Config
	Clock  func() time.Time
	Seed   int64
}

// Robot simulates one robot. Mode and the last MOVE come from the console;
// everything else evolves per tick.
type Robot struct {
	bus  bus.Bus
	opts Options
	now  func() time.Time
	rnd  *rand.Rand
	cam  *Camera

	mu       sync.Mutex
	status   telemetry.RobotStatus
	cmd      telemetry.ControlCommand
	wander   telemetry.ControlCommand
	commands int
}

// New returns a robot parked mid-yard with a full battery.
func New(b bus.Bus, opts Options) *Robot {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.DrainPerTick <= 0 {
		opts.DrainPerTick = DefaultDrain
	}
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	r := &Robot{
		bus:  b,
		opts: opts,
		now:  opts.Clock,
		rnd:  rand.New(rand.NewSource(opts.Seed)),
		status: telemetry.RobotStatus{
			Online:      true,
			Battery:     100,
			Mode:        telemetry.ModeManual,
			Position:    telemetry.Position{X: 50, Y: 50},
			Temperature: baseTemperature,
		},
	}
	if opts.Video {
		r.cam = NewCamera(opts.Camera)
	}
	return r
}

// Run connects, subscribes to commands, offers video and publishes status
// every tick until ctx is done.
func (r *Robot) Run(ctx context.Context) error {
	log := logging.FromContext(ctx).With("component", "robotsim")
	if !r.bus.Connected() {
		if err := r.bus.Connect(ctx); err != nil {
			return err
		}
	}
	sub, err := r.bus.Subscribe(bus.TopicControl, func(payload []byte) {
		if err := r.HandleControl(payload); err != nil {
			log.Warn("bad command", "err", err)
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	var wg sync.WaitGroup
	if r.cam != nil {
		defer func() { _ = r.cam.Close() }()
		answers, err := r.bus.Subscribe(bus.TopicAnswer, func(payload []byte) {
			if err := r.cam.Accept(payload); err != nil {
				log.Warn("bad answer", "err", err)
				return
			}
			log.Info("video answer applied")
		})
		if err != nil {
			return err
		}
		defer func() { _ = answers.Unsubscribe() }()

		wg.Add(1)
		go func() {
			defer wg.Done()
			r.offerVideo(ctx, log)
		}()
	}
	defer wg.Wait()

	log.Info("starting robot simulator", "tick_interval", r.opts.Tick)
	ticker := time.NewTicker(r.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-ctx.Done():
			log.Info("stopping robot simulator")
			return nil
		}
	}
}

func (r *Robot) offerVideo(ctx context.Context, log *slog.Logger) {
	offer, err := r.cam.Offer(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn("video offer failed", "err", err)
		}
		return
	}
	if err := r.bus.Publish(bus.TopicOffer, offer); err != nil {
		log.Warn("publish offer", "err", err)
		return
	}
	r.cam.Stream(ctx)
}

func (r *Robot) tick(ctx context.Context) {
	u := r.Step()
	data, err := json.Marshal(u)
	if err != nil {
		logging.FromContext(ctx).Error("encode status", "err", err)
		return
	}
	if err := r.bus.Publish(bus.TopicStatus, data); err != nil {
		logging.FromContext(ctx).Warn("publish status", "err", err)
	}
}

// HandleControl applies one command payload.
func (r *Robot) HandleControl(payload []byte) error {
	msg, err := telemetry.DecodeControl(payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands++
	switch msg.Type {
	case telemetry.CommandMove:
		if r.status.Mode == telemetry.ModeManual {
			r.cmd = msg.Command()
		}
	case telemetry.CommandStop:
		r.cmd = telemetry.ControlCommand{}
		r.status.Mode = telemetry.ModeEmergency
		r.status.Speed = 0
	case telemetry.CommandMode:
		r.status.Mode = msg.Value
		r.cmd = telemetry.ControlCommand{}
	}
	return nil
}

// Step advances one tick and returns the status update to publish.
func (r *Robot) Step() telemetry.StatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := &r.status

	cmd := r.cmd
	switch {
	case st.Mode == telemetry.ModeEmergency:
		cmd = telemetry.ControlCommand{}
	case st.Mode == telemetry.ModeAuto:
		cmd = r.patrol()
	}
	if st.Charging {
		cmd = telemetry.ControlCommand{}
		st.Battery = telemetry.ClampBattery(st.Battery + chargePerTick)
		if st.Battery >= 100 {
			st.Charging = false
		}
	} else if st.Battery <= 0 {
		cmd = telemetry.ControlCommand{}
	}

	st.Position = telemetry.ClampPosition(telemetry.Position{
		X: st.Position.X + cmd.Angular*r.opts.Step,
		Y: st.Position.Y - cmd.Linear*r.opts.Step,
	})
	st.Speed = telemetry.ClampSpeed(math.Abs(cmd.Linear) * r.opts.Step)
	if !st.Charging {
		drain := r.opts.DrainPerTick * (1 + st.Speed/r.opts.Step)
		st.Battery = telemetry.ClampBattery(st.Battery - drain)
		if st.Mode == telemetry.ModeAuto && st.Battery < chargeThreshold {
			st.Charging = true
		}
	}
	st.Temperature = baseTemperature + st.Speed + r.rnd.Float64()*0.5
	st.LastUpdate = r.now().UTC()
	return updateFrom(*st)
}

// patrol drifts the wander command so auto mode roams the yard.
func (r *Robot) patrol() telemetry.ControlCommand {
	if r.wander.IsZero() || r.rnd.Float64() < 0.2 {
		r.wander = telemetry.NewCommand(r.rnd.Float64()*2-1, r.rnd.Float64()*2-1)
	}
	return r.wander
}

// Status returns the simulated robot's own view.
func (r *Robot) Status() telemetry.RobotStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Commands counts accepted command messages.
func (r *Robot) Commands() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commands
}

// Camera exposes the video peer, nil when video is off.
func (r *Robot) Camera() *Camera { return r.cam }

func updateFrom(st telemetry.RobotStatus) telemetry.StatusUpdate {
	ts := st.LastUpdate
	mode := st.Mode
	return telemetry.StatusUpdate{
		Battery:     &st.Battery,
		Online:      &st.Online,
		X:           &st.Position.X,
		Y:           &st.Position.Y,
		Speed:       &st.Speed,
		Temperature: &st.Temperature,
		Charging:    &st.Charging,
		Mode:        &mode,
		Timestamp:   &ts,
	}
}

package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"petcare-console/internal/bus"
	"petcare-console/internal/logging"
	"petcare-console/internal/robotsim"
	"petcare-console/internal/signaling"
)

var (
	simTick  time.Duration
	simDrain float64
	simVideo bool
	simSeed  int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a fake robot on the configured bus",
	Long: "simulate connects to the message bus as the robot: it publishes status every tick, " +
		"obeys control messages and offers a synthetic video track.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		cfg := a.cfg
		log := a.log

		tick := cfg.Sim.Tick
		if cmd.Flags().Changed("tick") || tick <= 0 {
			tick = simTick
		}
		drain := cfg.Sim.DrainPerTick
		if cmd.Flags().Changed("drain") {
			drain = simDrain
		}
		video := cfg.Sim.Video || simVideo

		b, err := bus.New(cfg.Bus, log.With("component", "bus"))
		if err != nil {
			return err
		}
		defer b.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		robot := robotsim.New(b, robotsim.Options{
			Tick:         tick,
			DrainPerTick: drain,
			Video:        video,
			Camera: signaling.Config{
				STUNServers:     cfg.Video.STUNServers,
				IncludeLoopback: cfg.Video.IncludeLoopback,
			},
			Seed: simSeed,
		})
		if err := robot.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		log.Info("robot simulation stopped", "commands", robot.Commands())
		return nil
	},
}

func init() {
	simulateCmd.Flags().DurationVar(&simTick, "tick", robotsim.DefaultTick, "Status tick interval (e.g. 500ms, 2s)")
	simulateCmd.Flags().Float64Var(&simDrain, "drain", robotsim.DefaultDrain, "Battery percent drained per tick at rest")
	simulateCmd.Flags().BoolVar(&simVideo, "video", false, "Offer a synthetic video track")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed, 0 picks one")
}

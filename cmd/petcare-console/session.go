package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"petcare-console/internal/admin"
	"petcare-console/internal/api"
	"petcare-console/internal/apperr"
	"petcare-console/internal/bus"
	"petcare-console/internal/config"
	"petcare-console/internal/logging"
	"petcare-console/internal/record"
	"petcare-console/internal/robot"
	"petcare-console/internal/robotsim"
	"petcare-console/internal/signaling"
	"petcare-console/internal/telemetry"
	"petcare-console/internal/tui"
)

var (
	sessionSimulate bool
	sessionHeadless bool
	sessionAdmin    bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Open the live robot console",
	Long: "session connects to the robot over the message bus, shows its status and " +
		"drives it from the keyboard. With --simulate a fake robot runs in-process.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(!sessionHeadless)
		if err != nil {
			return err
		}
		defer a.Close()
		cfg := a.cfg
		log := a.log

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		opts, err := sessionOptions(cfg)
		if err != nil {
			return err
		}

		var b bus.Bus
		if sessionSimulate {
			b = bus.NewMemory()
			opts.Target = "simulator"
		} else if b, err = bus.New(cfg.Bus, log.With("component", "bus")); err != nil {
			return err
		}

		rec, err := record.FromConfig(cfg.Record, sessionHeadless && term.IsTerminal(int(os.Stdout.Fd())), log.With("component", "record"))
		if err != nil {
			return err
		}
		defer rec.Close()

		deps := robot.Deps{
			Bus:      b,
			Poller:   a.client,
			Speaker:  a.client,
			Notifier: a.notes,
			Recorder: rec,
			Logger:   log,
		}
		if cfg.Video.Enabled {
			deps.Video = signaling.New(signaling.Config{
				STUNServers:     cfg.Video.STUNServers,
				IncludeLoopback: cfg.Video.IncludeLoopback || sessionSimulate,
				RecordPath:      cfg.Video.RecordPath,
			}, b, log.With("component", "signaling"))
		}
		sess := robot.New(opts, deps)
		defer sess.Close()

		var console *tui.Console
		if !sessionHeadless {
			console = tui.New(ctx, sess, a.notes, loader(a), tui.Options{Sample: cfg.SampleInterval(), Release: cfg.Robot.KeyRelease})
			feed := console.Feed()
			sess.OnChange(feed.Status)
			a.notes.OnAdd(feed.Notification)
			rec.Add(feed)
		} else {
			sess.OnChange(func(st telemetry.RobotStatus) {
				log.Info("status", "online", st.Online, "mode", st.Mode, "battery", st.Battery,
					"x", st.Position.X, "y", st.Position.Y, "speed", st.Speed)
			})
		}

		if err := sess.Start(ctx); err != nil {
			if !apperr.IsConnection(err) {
				return err
			}
			log.Warn("robot unreachable, continuing offline", "err", err)
			if console != nil {
				console.Feed().Logf("robot unreachable: %v", err)
			}
		}

		if sessionSimulate {
			sim := robotsim.New(b, robotsim.Options{
				Tick:         cfg.Sim.Tick,
				DrainPerTick: cfg.Sim.DrainPerTick,
				Video:        cfg.Video.Enabled,
				Camera:       signaling.Config{IncludeLoopback: true},
			})
			simCtx, cancelSim := context.WithCancel(ctx)
			simDone := make(chan struct{})
			go func() {
				defer close(simDone)
				if err := sim.Run(simCtx); err != nil {
					log.Error("simulator stopped", "err", err)
				}
			}()
			defer func() {
				cancelSim()
				<-simDone
			}()
		}

		if cfg.Admin.Enabled || sessionAdmin {
			srv := admin.NewServer(sess, a.notes, log.With("component", "admin"))
			go func() {
				if err := srv.Start(ctx, cfg.Admin.Addr); err != nil && err != http.ErrServerClosed {
					log.Error("admin server failed", "err", err)
					if console != nil {
						console.Feed().Admin(false)
					}
				}
			}()
			if console != nil {
				console.Feed().Admin(true)
			}
		}

		if console == nil {
			<-ctx.Done()
			log.Info("session stopped")
			return nil
		}
		err = console.Run()
		stop()
		return err
	},
}

func sessionOptions(cfg *config.Config) (robot.Options, error) {
	strategy := robot.Strategy(cfg.Robot.Sync)
	if strategy != robot.StrategyPush && strategy != robot.StrategyPoll {
		return robot.Options{}, fmt.Errorf("unknown sync strategy %q", cfg.Robot.Sync)
	}
	mode := telemetry.Mode(cfg.Robot.InitialMode)
	if !mode.Valid() {
		return robot.Options{}, fmt.Errorf("invalid initial mode %q", cfg.Robot.InitialMode)
	}
	return robot.Options{
		Strategy:     strategy,
		PollInterval: cfg.Robot.PollInterval,
		MoveStep:     cfg.Robot.MoveStep,
		InitialMode:  mode,
		Target:       cfg.Bus.URL,
	}, nil
}

// loader fetches the console's secondary pages for the signed-in user.
func loader(a *app) tui.Loader {
	return tui.Loader{
		Cats: func(ctx context.Context) []api.Cat {
			u := a.auth.Current()
			if u == nil {
				return nil
			}
			return a.pets.List(ctx, u.ID)
		},
		Logs: func(ctx context.Context) []api.PatrolLog {
			u := a.auth.Current()
			if u == nil {
				return nil
			}
			return a.patrol.Logs(ctx, u.ID)
		},
	}
}

func init() {
	sessionCmd.Flags().BoolVar(&sessionSimulate, "simulate", false, "Drive an in-process simulated robot")
	sessionCmd.Flags().BoolVar(&sessionHeadless, "headless", false, "Log status instead of opening the console")
	sessionCmd.Flags().BoolVar(&sessionAdmin, "admin", false, "Serve the admin UI even if disabled in config")
}

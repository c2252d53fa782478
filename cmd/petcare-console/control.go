package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"petcare-console/internal/api"
	"petcare-console/internal/control"
	"petcare-console/internal/telemetry"
)

var (
	moveLinear  float64
	moveAngular float64
	moveStick   []float64
	ttsCloned   bool
	statusJSON  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch the robot's latest status once over REST",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.client.LatestStatus(cmd.Context())
		if err != nil {
			return err
		}
		var upd telemetry.StatusUpdate
		if u != nil {
			upd = *u
		}
		st := telemetry.NewState(telemetry.ModeManual)
		st.ApplyPoll(upd, nowFunc())
		snap := st.Snapshot()
		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		charging := ""
		if snap.Charging {
			charging = " (charging)"
		}
		fmt.Fprintf(out, "online:      %t\nbattery:     %.0f%%%s\ntemperature: %.1f°C\n", snap.Online, snap.Battery, charging, snap.Temperature)
		return nil
	},
}

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Send one-off commands over REST",
}

var controlMoveCmd = &cobra.Command{
	Use:   "move",
	Short: "Send one movement command",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		cmdv, err := moveCommand(cmd.Flags().Changed("stick"))
		if err != nil {
			return err
		}
		return a.client.Control(cmd.Context(), cmdv)
	},
}

var controlStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Send a zero movement command",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.client.Control(cmd.Context(), control.Release())
	},
}

var controlTTSCmd = &cobra.Command{
	Use:   "tts TEXT...",
	Short: "Make the robot speak",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return fmt.Errorf("nothing to say")
		}
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.client.Speak(cmd.Context(), api.TTSRequest{Text: text, UseClonedVoice: ttsCloned})
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status as JSON")
	controlMoveCmd.Flags().Float64Var(&moveLinear, "linear", 0, "Forward speed in [-1,1]")
	controlMoveCmd.Flags().Float64Var(&moveAngular, "angular", 0, "Turn rate in [-1,1]")
	controlMoveCmd.Flags().Float64SliceVar(&moveStick, "stick", nil, "Stick deflection x,y in screen coordinates (y down)")
	controlMoveCmd.MarkFlagsMutuallyExclusive("stick", "linear")
	controlMoveCmd.MarkFlagsMutuallyExclusive("stick", "angular")
	controlTTSCmd.Flags().BoolVar(&ttsCloned, "cloned", false, "Use the cloned voice")
	controlCmd.AddCommand(controlMoveCmd, controlStopCmd, controlTTSCmd)
}

// moveCommand builds the drive command from either the stick or the raw flags.
func moveCommand(stick bool) (telemetry.ControlCommand, error) {
	if !stick {
		return telemetry.NewCommand(moveLinear, moveAngular), nil
	}
	if len(moveStick) != 2 {
		return telemetry.ControlCommand{}, fmt.Errorf("--stick takes x,y, got %d values", len(moveStick))
	}
	return control.Joystick(moveStick[0], moveStick[1]), nil
}

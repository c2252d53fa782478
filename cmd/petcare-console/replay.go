package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"petcare-console/internal/config"
	"petcare-console/internal/logging"
	"petcare-console/internal/record"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded status log",
	Long:  "replay feeds status rows from a JSONL record file back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := config.Load(configPath, schemaPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.NewWriter(os.Stderr, cfg.Log.Level)
		// Replaying into the file being replayed would never end.
		cfg.Record.File = ""
		writer, err := newRecorder(cfg.Record, replayPrintOnly, log)
		if err != nil {
			return err
		}
		defer writer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		n, err := record.ReplayFile(ctx, replayInput, writer, replaySpeed)
		log.Info("replay finished", "rows", n, "input", replayInput)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to status record file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print status to STDOUT instead of writing to DB")
	replayCmd.MarkFlagRequired("input")
}

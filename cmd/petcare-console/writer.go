package main

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"petcare-console/internal/config"
	"petcare-console/internal/record"
)

// newRecorder picks the status sinks for a command. printOnly, or a config
// without any sink, falls back to STDOUT.
func newRecorder(cfg config.RecordConfig, printOnly bool, log *slog.Logger) (*record.MultiWriter, error) {
	colorize := term.IsTerminal(int(os.Stdout.Fd()))
	if printOnly {
		return record.NewMultiWriter(record.NewStdoutWriter(colorize)), nil
	}
	mw, err := record.FromConfig(cfg, colorize, log)
	if err != nil {
		return nil, err
	}
	if mw.Len() == 0 {
		mw.Add(record.NewStdoutWriter(colorize))
	}
	return mw, nil
}

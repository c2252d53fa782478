package record

import (
	"fmt"
	"log/slog"

	"petcare-console/internal/config"
)

// FromConfig opens the sinks enabled in cfg. An empty MultiWriter is valid
// and records nothing.
func FromConfig(cfg config.RecordConfig, colorize bool, log *slog.Logger) (*MultiWriter, error) {
	var ws []Writer
	if cfg.Stdout {
		ws = append(ws, NewStdoutWriter(colorize))
	}
	if cfg.File != "" {
		fw, err := NewFileWriter(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("open record file: %w", err)
		}
		ws = append(ws, fw)
	}
	if cfg.GreptimeEndpoint != "" {
		gw, err := NewGreptimeDBWriter(cfg.GreptimeEndpoint, cfg.GreptimeDatabase, log)
		if err != nil {
			mw := NewMultiWriter(ws...)
			_ = mw.Close()
			return nil, fmt.Errorf("connect greptimedb: %w", err)
		}
		ws = append(ws, gw)
	}
	return NewMultiWriter(ws...), nil
}

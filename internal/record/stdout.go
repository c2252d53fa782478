// Writer implementation printing status rows to STDOUT
package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"petcare-console/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// StdoutWriter prints status rows as JSON lines, or colorized key=value
// lines for a terminal.
type StdoutWriter struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
}

// NewStdoutWriter creates a StdoutWriter writing to os.Stdout.
func NewStdoutWriter(colorize bool) *StdoutWriter {
	return &StdoutWriter{out: os.Stdout, colorize: colorize}
}

// WriteStatus outputs a single row.
func (w *StdoutWriter) WriteStatus(row telemetry.StatusRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.colorize {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w.out, string(data))
		return err
	}

	online, onlineColor := "offline", colorRed
	if row.Online {
		online, onlineColor = "online", colorGreen
	}
	battColor := colorCyan
	if row.Battery < 20 {
		battColor = colorYellow
	}
	modeColor := colorBlue
	if row.Mode == string(telemetry.ModeEmergency) {
		modeColor = colorRed
	}
	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, row.Timestamp.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%s%s%s ", onlineColor, online, colorReset)
	fmt.Fprintf(w.out, "%smode=%s%s ", modeColor, row.Mode, colorReset)
	fmt.Fprintf(w.out, "%sbatt=%.1f%s ", battColor, row.Battery, colorReset)
	fmt.Fprintf(w.out, "%spos=(%.1f,%.1f)%s ", colorMagenta, row.X, row.Y, colorReset)
	fmt.Fprintf(w.out, "%sspd=%.2f%s ", colorYellow, row.Speed, colorReset)
	fmt.Fprintf(w.out, "%ssrc=%s%s", colorGray, row.Source, colorReset)
	if row.Charging {
		fmt.Fprintf(w.out, " %scharging%s", colorGreen, colorReset)
	}
	_, err := fmt.Fprintln(w.out)
	return err
}

// WriteStatuses outputs multiple rows.
func (w *StdoutWriter) WriteStatuses(rows []telemetry.StatusRow) error {
	for _, r := range rows {
		if err := w.WriteStatus(r); err != nil {
			return err
		}
	}
	return nil
}

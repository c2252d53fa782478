// Package tui is the terminal console for a live robot session.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"petcare-console/internal/notify"
	"petcare-console/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// statusMsg carries a status change from the session.
type statusMsg struct{ telemetry.RobotStatus }

// noteMsg carries a newly raised notification.
type noteMsg struct{ notify.Notification }

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// adminMsg reports admin server status.
type adminMsg struct{ active bool }

// feedBuffer holds events raised before the program loop is up.
const feedBuffer = 256

// Feed forwards session events into a running program. Its methods are safe
// to call from any goroutine and never block; with a queue attached, events
// beyond the buffer are dropped.
type Feed struct {
	program teaProgram
	queue   chan tea.Msg
}

func (f *Feed) send(msg tea.Msg) {
	if f.queue == nil {
		f.program.Send(msg)
		return
	}
	select {
	case f.queue <- msg:
	default:
	}
}

// pump delivers queued events until done is closed.
func (f *Feed) pump(done <-chan struct{}) {
	for {
		select {
		case msg := <-f.queue:
			f.program.Send(msg)
		case <-done:
			return
		}
	}
}

// Status is registered with Session.OnChange.
func (f *Feed) Status(st telemetry.RobotStatus) {
	f.send(statusMsg{st})
}

// Notification is registered with Center.OnAdd.
func (f *Feed) Notification(n notify.Notification) {
	f.send(noteMsg{n})
}

// Admin toggles the admin indicator.
func (f *Feed) Admin(active bool) {
	f.send(adminMsg{active: active})
}

// Logf appends a line to the log viewport.
func (f *Feed) Logf(format string, args ...any) {
	f.send(logMsg{line: fmt.Sprintf(format, args...)})
}

// WriteStatus makes the feed a record writer: every recorded row shows up
// in the log viewport.
func (f *Feed) WriteStatus(row telemetry.StatusRow) error {
	f.send(logMsg{line: formatRow(row)})
	return nil
}

func formatRow(r telemetry.StatusRow) string {
	online := "offline"
	if r.Online {
		online = "online"
	}
	return fmt.Sprintf("[%s] %-6s %-9s %-7s batt=%5.1f%% pos=(%.1f,%.1f) spd=%.2f",
		r.Timestamp.Format("15:04:05"), r.Source, r.Mode, online, r.Battery, r.X, r.Y, r.Speed)
}

// Console owns the bubbletea program.
type Console struct {
	ctx     context.Context
	program *tea.Program
	feed    *Feed
}

// New builds the console around a controller. Nothing is drawn until Run.
func New(ctx context.Context, ctl Controller, inbox Inbox, load Loader, opts Options) *Console {
	m := newModel(ctx, ctl, inbox, load, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	return &Console{ctx: ctx, program: p, feed: &Feed{program: p, queue: make(chan tea.Msg, feedBuffer)}}
}

// Feed returns the event bridge for this console.
func (c *Console) Feed() *Feed { return c.feed }

// Run blocks until the user quits or the context is cancelled. A
// cancelled context is a normal exit.
func (c *Console) Run() error {
	done := make(chan struct{})
	defer close(done)
	go c.feed.pump(done)
	_, err := c.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && c.ctx.Err() != nil {
		return nil
	}
	return err
}

// Quit asks the program to exit.
func (c *Console) Quit() { c.program.Send(tea.Quit()) }

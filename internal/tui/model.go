package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"petcare-console/internal/api"
	"petcare-console/internal/control"
	"petcare-console/internal/notify"
	"petcare-console/internal/patrol"
	"petcare-console/internal/robot"
	"petcare-console/internal/telemetry"
)

// Controller is the session surface the console drives. *robot.Session
// implements it.
type Controller interface {
	Snapshot() telemetry.RobotStatus
	Extras() robot.Extras
	Video() robot.VideoStatus
	Move(linear, angular float64)
	EmergencyStop()
	ToggleMode() (telemetry.Mode, error)
	Resume() bool
	ToggleVideo() bool
	SendTTS(ctx context.Context, text string)
	StartWalkieTalkie()
	StopWalkieTalkie() bool
	TrainVoice() bool
	SetUseClonedVoice(use bool)
}

// Inbox is the notification center as seen by the console.
type Inbox interface {
	List() []notify.Notification
	UnreadCount() int
	MarkAllRead(ctx context.Context)
	Clear(ctx context.Context)
}

// Loader fetches the secondary pages. Either func may be nil.
type Loader struct {
	Cats func(ctx context.Context) []api.Cat
	Logs func(ctx context.Context) []api.PatrolLog
}

// Options tunes input handling.
type Options struct {
	// Sample is the keyboard sampling period.
	Sample time.Duration
	// Release is how long after its last repeat a drive key counts as
	// released. Terminals report presses only, so a held key is seen as a
	// stream of repeats; this must exceed the initial autorepeat delay
	// (660ms on X11).
	Release time.Duration
	Now     func() time.Time
}

const (
	DefaultRelease  = 750 * time.Millisecond
	toastTTL        = 4 * time.Second
	maxLogLines     = 500
	mapWidth        = 40
	mapHeight       = 12
	chartBarWidth   = 30
	lowBatteryLevel = 20
)

type page int

const (
	pageDrive page = iota
	pageNotifications
	pageCats
	pageLogs
	pageCount
)

func (p page) String() string {
	switch p {
	case pageNotifications:
		return "Notifications"
	case pageCats:
		return "Cats"
	case pageLogs:
		return "Patrol"
	default:
		return "Drive"
	}
}

type tickMsg time.Time
type catsMsg []api.Cat
type patrolMsg []api.PatrolLog
type toastMsg string

var driveKeys = map[string]bool{"w": true, "a": true, "s": true, "d": true}

type model struct {
	ctx     context.Context
	ctl     Controller
	inbox   Inbox
	load    Loader
	sampler *control.Sampler
	pressed map[string]time.Time
	sample  time.Duration
	release time.Duration
	now     func() time.Time

	status telemetry.RobotStatus
	page   page

	logs       []string
	vp         viewport.Model
	wrap       bool
	autoScroll bool
	showHelp   bool
	admin      bool

	ttsInput  textinput.Model
	ttsDialog bool

	toast   string
	toastAt time.Time

	cats    table.Model
	catList []api.Cat
	chart   patrol.Chart

	width  int
	height int
}

func newModel(ctx context.Context, ctl Controller, inbox Inbox, load Loader, opts Options) model {
	if opts.Sample <= 0 {
		opts.Sample = control.DefaultInterval
	}
	if opts.Release <= 0 {
		opts.Release = DefaultRelease
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cols := []table.Column{
		{Title: "Name", Width: 12},
		{Title: "Breed", Width: 14},
		{Title: "Age", Width: 4},
		{Title: "Weight", Width: 7},
		{Title: "Health", Width: 8},
		{Title: "Behavior", Width: 10},
	}
	cats := table.New(table.WithColumns(cols), table.WithHeight(8))
	ti := textinput.New()
	ti.Placeholder = "what should the robot say?"
	ti.CharLimit = 200
	return model{
		ctx:        ctx,
		ctl:        ctl,
		inbox:      inbox,
		load:       load,
		sampler:    control.NewSampler(ctl.Move),
		pressed:    make(map[string]time.Time),
		sample:     opts.Sample,
		release:    opts.Release,
		now:        opts.Now,
		status:     ctl.Snapshot(),
		vp:         viewport.New(0, 0),
		wrap:       true,
		autoScroll: true,
		ttsInput:   ti,
		cats:       cats,
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.sample, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) loadCats() tea.Cmd {
	if m.load.Cats == nil {
		return nil
	}
	ctx, fn := m.ctx, m.load.Cats
	return func() tea.Msg { return catsMsg(fn(ctx)) }
}

func (m model) loadLogs() tea.Cmd {
	if m.load.Logs == nil {
		return nil
	}
	ctx, fn := m.ctx, m.load.Logs
	return func() tea.Msg { return patrolMsg(fn(ctx)) }
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.loadCats(), m.loadLogs())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refreshViewport()
	case tickMsg:
		m.releaseStale(time.Time(msg))
		m.sampler.Tick()
		if m.toast != "" && time.Time(msg).Sub(m.toastAt) > toastTTL {
			m.toast = ""
		}
		return m, m.tick()
	case statusMsg:
		m.status = msg.RobotStatus
	case noteMsg:
		m.setToast(fmt.Sprintf("%s: %s", msg.Title, msg.Message))
	case toastMsg:
		m.setToast(string(msg))
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case adminMsg:
		m.admin = msg.active
	case catsMsg:
		m.catList = msg
		m.cats.SetRows(catRows(msg))
	case patrolMsg:
		m.chart = patrol.WeeklyChart(msg, m.now())
	case tea.KeyMsg:
		if m.ttsDialog {
			return m.updateDialog(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if driveKeys[key] {
		m.sampler.KeyDown(key)
		m.pressed[key] = m.now()
		return m, nil
	}
	switch key {
	case "q", "ctrl+c":
		m.sampler.ReleaseAll()
		m.sampler.Tick()
		return m, tea.Quit
	case " ":
		m.releaseAll()
	case "e":
		m.releaseAll()
		m.ctl.EmergencyStop()
	case "r":
		if !m.ctl.Resume() {
			m.setToast("not in emergency")
		}
	case "m":
		if _, err := m.ctl.ToggleMode(); err != nil {
			if errors.Is(err, robot.ErrEmergencyLatched) {
				m.setToast("emergency stop active, press r to resume")
			} else {
				m.setToast(err.Error())
			}
		}
	case "v":
		if m.ctl.ToggleVideo() {
			m.setToast("video on")
		} else {
			m.setToast("video off")
		}
	case "t":
		m.ttsDialog = true
		m.sampler.SetInputFocus(true)
		m.releaseAll()
		m.ttsInput.SetValue("")
		m.ttsInput.Focus()
	case "p":
		if m.ctl.Extras().Recording {
			m.ctl.StopWalkieTalkie()
		} else {
			m.ctl.StartWalkieTalkie()
			m.setToast("recording, press p to send")
		}
	case "c":
		if m.ctl.TrainVoice() {
			m.setToast("training voice")
		}
	case "u":
		ex := m.ctl.Extras()
		if !ex.VoiceCloned {
			m.setToast("train a voice first (c)")
		} else {
			m.ctl.SetUseClonedVoice(!ex.UseClonedVoice)
		}
	case "tab":
		m.page = (m.page + 1) % pageCount
		m.resize()
		switch m.page {
		case pageCats:
			return m, m.loadCats()
		case pageLogs:
			return m, m.loadLogs()
		}
	case "x":
		m.inbox.MarkAllRead(m.ctx)
	case "X":
		m.inbox.Clear(m.ctx)
	case "z":
		m.wrap = !m.wrap
		m.refreshViewport()
	case "f":
		m.autoScroll = !m.autoScroll
		if m.autoScroll {
			m.vp.GotoBottom()
		}
	case "h", "?":
		m.showHelp = !m.showHelp
	case "up", "down", "pgup", "pgdown":
		if m.page == pageCats {
			var cmd tea.Cmd
			m.cats, cmd = m.cats.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeDialog()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.ttsInput.Value())
		m.closeDialog()
		if text == "" {
			return m, nil
		}
		ctx, ctl := m.ctx, m.ctl
		return m, func() tea.Msg {
			ctl.SendTTS(ctx, text)
			return nil
		}
	}
	var cmd tea.Cmd
	m.ttsInput, cmd = m.ttsInput.Update(msg)
	return m, cmd
}

func (m *model) closeDialog() {
	m.ttsDialog = false
	m.ttsInput.Blur()
	m.sampler.SetInputFocus(false)
}

// releaseStale lifts drive keys whose repeats stopped arriving.
func (m *model) releaseStale(now time.Time) {
	for k, at := range m.pressed {
		if now.Sub(at) >= m.release {
			m.sampler.KeyUp(k)
			delete(m.pressed, k)
		}
	}
}

func (m *model) releaseAll() {
	m.sampler.ReleaseAll()
	clear(m.pressed)
	m.sampler.Tick()
}

func (m *model) setToast(s string) {
	m.toast = s
	m.toastAt = m.now()
}

func (m *model) resize() {
	if m.width == 0 {
		return
	}
	used := lipgloss.Height(m.renderTop()) + lipgloss.Height(m.renderBottom())
	h := m.height - used - 1
	if h < 3 {
		h = 3
	}
	m.vp.Width = m.width
	m.vp.Height = h
	m.cats.SetHeight(h)
}

func (m *model) refreshViewport() {
	lines := m.logs
	if m.wrap && m.vp.Width > 0 {
		lines = wrapLines(m.logs, m.vp.Width)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoScroll {
		m.vp.GotoBottom()
	}
}

func catRows(cats []api.Cat) []table.Row {
	rows := make([]table.Row, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, table.Row{
			c.Name,
			c.Breed,
			fmt.Sprintf("%d", c.Age),
			fmt.Sprintf("%.1fkg", c.Weight),
			c.HealthStatus,
			c.BehaviorStatus,
		})
	}
	return rows
}

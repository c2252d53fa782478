package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"petcare-console/internal/notify"
	"petcare-console/internal/pets"
	"petcare-console/internal/telemetry"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9"))
	toastStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	unreadStyle = lipgloss.NewStyle().Bold(true)
)

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func modeStyle(m telemetry.Mode) lipgloss.Style {
	switch m {
	case telemetry.ModeEmergency:
		return alertStyle
	case telemetry.ModeAuto:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	}
}

func (m model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}
	var body string
	switch m.page {
	case pageNotifications:
		body = m.renderNotifications()
	case pageCats:
		body = m.renderCats()
	case pageLogs:
		body = m.renderChart()
	default:
		body = m.vp.View()
	}
	parts := []string{m.renderTop(), body}
	if m.ttsDialog {
		parts = append(parts, panelStyle.Render("Say: "+m.ttsInput.View()))
	}
	parts = append(parts, m.renderBottom())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) renderTop() string {
	tabs := make([]string, 0, pageCount)
	for p := page(0); p < pageCount; p++ {
		name := p.String()
		if p == pageNotifications {
			if n := m.inbox.UnreadCount(); n > 0 {
				name = fmt.Sprintf("%s (%d)", name, n)
			}
		}
		if p == m.page {
			tabs = append(tabs, titleStyle.Render("["+name+"]"))
		} else {
			tabs = append(tabs, dimStyle.Render(" "+name+" "))
		}
	}
	header := strings.Join(tabs, " ")
	if m.page != pageDrive {
		return header
	}
	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(m.renderStatus()),
		panelStyle.Render(renderMap(m.status.Position)),
		panelStyle.Render(m.renderExtras()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, header, panels)
}

func (m model) renderStatus() string {
	st := m.status
	online := "offline"
	if st.Online {
		online = "online"
	}
	last := "never"
	if !st.LastUpdate.IsZero() {
		last = st.LastUpdate.Format("15:04:05")
	}
	charging := ""
	if st.Charging {
		charging = " ⚡"
	}
	lines := []string{
		titleStyle.Render("Robot"),
		fmt.Sprintf("%s %s", indicator(st.Online), online),
		"mode     " + modeStyle(st.Mode).Render(string(st.Mode)),
		"battery  " + batteryBar(st.Battery, 10) + charging,
		fmt.Sprintf("speed    %.2f", st.Speed),
		fmt.Sprintf("temp     %.1f°C", st.Temperature),
		fmt.Sprintf("position (%.1f, %.1f)", st.Position.X, st.Position.Y),
		dimStyle.Render("updated  " + last),
	}
	return strings.Join(lines, "\n")
}

func batteryBar(level float64, width int) string {
	filled := int(math.Round(telemetry.ClampBattery(level) / 100 * float64(width)))
	c := lipgloss.Color("10")
	if level < lowBatteryLevel {
		c = lipgloss.Color("9")
	}
	bar := lipgloss.NewStyle().Foreground(c).Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, level)
}

// renderMap draws the 100x100 yard scaled to a small character grid.
func renderMap(p telemetry.Position) string {
	p = telemetry.ClampPosition(p)
	col := int(math.Round(p.X / 100 * float64(mapWidth-1)))
	row := mapHeight - 1 - int(math.Round(p.Y/100*float64(mapHeight-1)))
	var b strings.Builder
	for r := 0; r < mapHeight; r++ {
		for c := 0; c < mapWidth; c++ {
			if r == row && c == col {
				b.WriteString(titleStyle.Render("◆"))
			} else {
				b.WriteString(dimStyle.Render("·"))
			}
		}
		if r < mapHeight-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m model) renderExtras() string {
	ex := m.ctl.Extras()
	v := m.ctl.Video()
	video := fmt.Sprintf("%s video %s", indicator(v.On), v.State)
	if v.Stream != nil {
		video += fmt.Sprintf("\n  %s %s", v.Stream.Kind, v.Stream.Codec)
	}
	voice := "default"
	switch {
	case ex.Training:
		voice = "training..."
	case ex.VoiceCloned && ex.UseClonedVoice:
		voice = "cloned"
	case ex.VoiceCloned:
		voice = "default (cloned ready)"
	}
	held := make([]string, 0, 4)
	for _, k := range []string{"w", "a", "s", "d"} {
		if m.sampler.Held(k) {
			held = append(held, strings.ToUpper(k))
		}
	}
	lines := []string{
		titleStyle.Render("Media"),
		video,
		fmt.Sprintf("%s talk", indicator(ex.Recording)),
		"voice " + voice,
		"",
		"keys  " + strings.Join(held, " "),
	}
	return strings.Join(lines, "\n")
}

func (m model) renderNotifications() string {
	items := m.inbox.List()
	if len(items) == 0 {
		return dimStyle.Render("no notifications")
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	var lines []string
	for _, n := range items {
		head := fmt.Sprintf("%s %-6s %s", n.Timestamp.Format("01-02 15:04"), n.Type, n.Title)
		if n.Priority == notify.PriorityHigh {
			head = alertStyle.Render(head)
		} else if !n.Read {
			head = unreadStyle.Render(head)
		} else {
			head = dimStyle.Render(head)
		}
		lines = append(lines, head, "  "+wordwrap.String(n.Message, width-2))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderCats() string {
	if len(m.catList) == 0 {
		return dimStyle.Render("no cats registered")
	}
	out := m.cats.View()
	if attn := pets.NeedsAttention(m.catList); len(attn) > 0 {
		names := make([]string, 0, len(attn))
		for _, c := range attn {
			names = append(names, c.Name)
		}
		out += "\n" + toastStyle.Render("needs attention: "+strings.Join(names, ", "))
	}
	return out
}

func (m model) renderChart() string {
	maxMin, maxDet := m.chart.Max()
	lines := []string{titleStyle.Render("This week")}
	for _, d := range m.chart.Days {
		lines = append(lines, fmt.Sprintf("%s %s %5.1fm  %s %d",
			d.Day.String()[:3],
			bar(d.Minutes, maxMin, chartBarWidth, "12"),
			d.Minutes,
			bar(float64(d.Detections), float64(maxDet), chartBarWidth/2, "13"),
			d.Detections,
		))
	}
	lines = append(lines, dimStyle.Render(fmt.Sprintf("total %.1f minutes, %d detections",
		m.chart.TotalMinutes, m.chart.TotalDetections)))
	return strings.Join(lines, "\n")
}

func bar(v, top float64, width int, color string) string {
	n := 0
	if top > 0 {
		n = int(math.Round(v / top * float64(width)))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(strings.Repeat("▇", n)) +
		strings.Repeat(" ", width-n)
}

func (m model) renderBottom() string {
	ex := m.ctl.Extras()
	status := fmt.Sprintf("%s Admin %s Wrap %s Follow %s Talk │ tab page │ h help",
		indicator(m.admin), indicator(m.wrap), indicator(m.autoScroll), indicator(ex.Recording))
	if m.status.Mode == telemetry.ModeEmergency {
		status = alertStyle.Render(" EMERGENCY STOP ") + " " + status
	}
	if m.toast != "" {
		status += "\n" + toastStyle.Render(m.toast)
	}
	return status
}

func (m model) renderHelp() string {
	rows := [][2]string{
		{"w a s d", "drive (hold)"},
		{"space", "stop driving"},
		{"e", "emergency stop"},
		{"r", "resume from emergency"},
		{"m", "toggle manual/auto"},
		{"v", "toggle video"},
		{"t", "text to speech"},
		{"p", "walkie-talkie start/send"},
		{"c", "train voice"},
		{"u", "use cloned voice"},
		{"tab", "next page"},
		{"x / X", "mark all read / clear notifications"},
		{"z / f", "wrap / follow logs"},
		{"↑ ↓", "scroll"},
		{"h ?", "close help"},
		{"q", "quit"},
	}
	lines := []string{titleStyle.Render("Keys")}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %-8s %s", r[0], r[1]))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func wrapLines(lines []string, width int) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, wordwrap.String(l, width))
	}
	return out
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"

	"github.com/lonitor/lonitor/internal/history"
	"github.com/lonitor/lonitor/internal/model"
	"github.com/lonitor/lonitor/internal/monitor"
)

const logLines = 5

// Model renders live snapshots from the monitor and triggers its actions.
type Model struct {
	ctx     context.Context
	mon     *monitor.Monitor
	stream  <-chan model.Snapshot
	latest  model.Snapshot
	have    bool
	top     []model.ProcessInfo
	cursor  int
	profile int
	busy    bool
	confirm *model.ProcessInfo
	actions []model.ActionRecord
	width   int
	height  int
}

func New(ctx context.Context, mon *monitor.Monitor) *Model {
	return &Model{
		ctx:     ctx,
		mon:     mon,
		stream:  mon.Subscribe(4),
		profile: 1,
		width:   120,
		height:  40,
	}
}

// Messages
type (
	tickMsg   struct{}
	actionMsg struct {
		rec model.ActionRecord
		err error
	}
)

func tickCmd() tea.Cmd { return tea.Tick(time.Second/5, func(time.Time) tea.Msg { return tickMsg{} }) }

func (m *Model) Init() tea.Cmd { return tickCmd() }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		return m.key(msg)
	case tickMsg:
		select {
		case snap, ok := <-m.stream:
			if ok {
				m.latest, m.have = snap, true
				m.top = m.mon.TopProcesses()
				if m.cursor >= len(m.top) {
					m.cursor = max(0, len(m.top)-1)
				}
			}
		default:
		}
		return m, tickCmd()
	case actionMsg:
		m.busy = false
		m.actions = m.mon.ActionLog()
	}
	return m, nil
}

func (m *Model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		return m.confirmKill(msg)
	}
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.top)-1 {
			m.cursor++
		}
		return m, nil
	}
	if m.busy {
		return m, nil
	}

	var run func(ctx context.Context) (model.ActionRecord, error)
	switch msg.String() {
	case "p":
		m.profile = (m.profile + 1) % len(model.PowerProfiles)
		p := model.PowerProfiles[m.profile]
		run = func(ctx context.Context) (model.ActionRecord, error) { return m.mon.SetPowerProfile(ctx, p) }
	case "r":
		run = m.mon.ClearRAMCache
	case "s":
		run = m.mon.ClearStorageCache
	case "x":
		if m.cursor >= len(m.top) {
			return m, nil
		}
		p := m.top[m.cursor]
		m.confirm = &p
		return m, nil
	default:
		return m, nil
	}
	m.busy = true
	return m, actionCmd(m.ctx, run)
}

// confirmKill answers the terminate prompt. Only y or enter sends the signal;
// any other key dismisses it.
func (m *Model) confirmKill(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.confirm
	m.confirm = nil
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "y", "Y", "enter":
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, actionCmd(m.ctx, func(ctx context.Context) (model.ActionRecord, error) {
			return m.mon.KillProcess(ctx, p.PID)
		})
	}
	return m, nil
}

// actionCmd runs an action off the update loop; the executor records it.
func actionCmd(ctx context.Context, run func(ctx context.Context) (model.ActionRecord, error)) tea.Cmd {
	return func() tea.Msg {
		rec, err := run(ctx)
		return actionMsg{rec: rec, err: err}
	}
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	selectStyle = lipgloss.NewStyle().Reverse(true)
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	sparks      = []rune("▁▂▃▄▅▆▇█")
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
	bandColors = map[history.Band]lipgloss.Color{
		history.BandNormal:   lipgloss.Color("42"),
		history.BandWarning:  lipgloss.Color("214"),
		history.BandCritical: lipgloss.Color("196"),
		history.BandUnknown:  lipgloss.Color("244"),
	}
)

func bandStyle(b history.Band) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(bandColors[b])
}

func (m *Model) View() string {
	if !m.have {
		return titleStyle.Render("lonitor") + "  " + subtleStyle.Render("waiting for first sample…")
	}
	s := m.latest
	th := m.mon.Thresholds()

	uptime := "n/a"
	if secs, ok := s.UptimeSeconds(); ok {
		uptime = units.HumanDuration(time.Duration(secs) * time.Second)
	}
	header := titleStyle.Render("lonitor") + "  " +
		subtleStyle.Render(s.Timestamp.Format("Mon Jan 2 15:04:05 MST 2006")+"  up "+uptime)

	cpuPct, cpuOk := s.CPUPercent()
	cpuBody := gaugeOrNA(cpuPct, cpuOk, th.ClassifyReading(cpuPct, cpuOk))
	if s.Load.Ok() {
		cpuBody += fmt.Sprintf("\nload %.2f %.2f %.2f", s.Load.Value.Load1, s.Load.Value.Load5, s.Load.Value.Load15)
	}
	if s.CPUTemp.Ok() {
		cpuBody += fmt.Sprintf("  %.0f°C", s.CPUTemp.Value)
	}
	if points, err := m.mon.History(model.MetricCPU); err == nil && len(points) > 0 {
		cpuBody += "\n" + sparkline(points, 30)
	}
	cpuCard := card("CPU", cpuBody)

	memPct, memOk := s.MemoryPercent()
	memBody := gaugeOrNA(memPct, memOk, th.ClassifyReading(memPct, memOk))
	if memOk {
		mem := s.Memory.Value
		memBody += fmt.Sprintf("\n%s / %s | Swap %s / %s",
			units.BytesSize(float64(mem.Used)), units.BytesSize(float64(mem.Total)),
			units.BytesSize(float64(mem.SwapUsed)), units.BytesSize(float64(mem.SwapTotal)))
	}
	memCard := card("Memory", memBody)

	diskPct, diskOk := s.DiskPercent()
	diskBody := gaugeOrNA(diskPct, diskOk, th.ClassifyReading(diskPct, diskOk))
	if diskOk {
		d := s.Disk.Value
		diskBody += fmt.Sprintf("\n%s  %s / %s", d.Path, units.HumanSize(float64(d.Used)), units.HumanSize(float64(d.Total)))
	}
	diskCard := card("Disk", diskBody)

	ioCard := card("IO / NET", m.rates())

	columns := []string{cpuCard, memCard, diskCard, ioCard}
	if s.Battery.Ok() {
		b := s.Battery.Value
		body := bandStyle(th.ClassifyBattery(s.Battery)).Render(fmt.Sprintf("%.0f%%", b.Percent)) + " (" + b.State + ")" +
			"\n" + timeLeft(b)
		columns = append(columns, card("Battery", body))
	}

	topTable := card(fmt.Sprintf("Top CPU (%d processes)", m.mon.ProcessCount()), renderTable(m.top, m.cursor))
	logCard := card("Actions", m.renderLog())

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, columns...)
	line2 := lipgloss.JoinHorizontal(lipgloss.Top, topTable, logCard)

	help := subtleStyle.Render(fmt.Sprintf(
		"↑/↓ select  x kill  p power (next: %s)  r clear RAM  s clear storage  q quit",
		model.PowerProfiles[(m.profile+1)%len(model.PowerProfiles)]))
	if m.busy {
		help = labelStyle.Render("working…") + "  " + help
	}
	if p := m.confirm; p != nil {
		help = bandStyle(history.BandCritical).Render(
			fmt.Sprintf("Terminate process %s (%d)? y/n", p.Name, p.PID))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2, help)
}

// rates converts the per-tick deltas to per-second figures.
func (m *Model) rates() string {
	s := m.latest
	secs := m.mon.Interval().Seconds()
	if secs <= 0 {
		secs = 1
	}
	rate := func(v uint64) string { return units.HumanSize(float64(v)/secs) + "/s" }

	disk := "Disk R/W: n/a"
	if s.DiskIO.Ok() {
		disk = "Disk R/W: " + rate(s.DiskIO.Value.Read) + " / " + rate(s.DiskIO.Value.Written)
	}
	net := "Net TX/RX: n/a"
	if s.Net.Ok() {
		net = "Net TX/RX: " + rate(s.Net.Value.Sent) + " / " + rate(s.Net.Value.Recv)
	}
	return disk + "\n" + net
}

func (m *Model) renderLog() string {
	if len(m.actions) == 0 {
		return subtleStyle.Render("no actions yet")
	}
	n := min(logLines, len(m.actions))
	lines := make([]string, 0, n)
	for _, rec := range m.actions[:n] {
		style := bandStyle(history.BandNormal)
		if !rec.Outcome.Success() {
			style = bandStyle(history.BandCritical)
		}
		lines = append(lines, fmt.Sprintf("%s %-19s %s",
			rec.Timestamp.Format(time.TimeOnly),
			rec.Kind,
			style.Render(truncate(rec.Outcome.String()+" "+rec.Detail, 48))))
	}
	return strings.Join(lines, "\n")
}

// Helpers
func gaugeOrNA(pct float64, ok bool, band history.Band) string {
	if !ok {
		return subtleStyle.Render("n/a")
	}
	return bandStyle(band).Render(gaugeBar(pct, 28))
}

func gaugeBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

// sparkline draws the newest width points of a 0-100 series.
func sparkline(points []model.Point, width int) string {
	if len(points) > width {
		points = points[len(points)-width:]
	}
	var b strings.Builder
	for _, p := range points {
		i := int(p.Value / 100 * float64(len(sparks)-1))
		b.WriteRune(sparks[max(0, min(i, len(sparks)-1))])
	}
	return b.String()
}

// timeLeft renders the battery's remaining runtime as "Xh Ym".
func timeLeft(b model.Battery) string {
	switch {
	case b.Charging:
		return "Plugged In"
	case !b.TimeRemaining.Ok():
		return "Calculating..."
	}
	d := b.TimeRemaining.Value
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func card(title, body string) string {
	titleStr := labelStyle.Render(title)
	content := titleStr + "\n" + body
	return cardStyle.Render(content)
}

func renderTable(rows []model.ProcessInfo, cursor int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-7s %6s %6s", "cmd", "pid", "cpu", "mem")
	for i, r := range rows {
		line := fmt.Sprintf("%-18s %-7d %6.1f %6.1f", truncate(r.Name, 18), r.PID, r.CPUPercent, r.MemoryPercent)
		if i == cursor {
			line = selectStyle.Render(line)
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run starts sampling and the Bubble Tea program until the user quits or ctx ends.
func Run(ctx context.Context, mon *monitor.Monitor) error {
	m := New(ctx, mon)
	if err := mon.Start(ctx); err != nil {
		return err
	}
	defer mon.Stop()

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Package dashboard renders live workload and client statistics in the terminal.
package dashboard

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/pior/respkv"
	"github.com/pior/respkv/internal/workload"
	"github.com/sony/gobreaker/v2"
)

const (
	refreshRate = 200 * time.Millisecond
	maxLogs     = 20
)

// Snapshot is the state displayed at one refresh.
type Snapshot struct {
	Timestamp time.Time
	Workload  workload.Stats
	Client    respkv.Stats
	Breakers  map[string]gobreaker.State
}

// Dashboard manages the TUI display
type Dashboard struct {
	title  string
	source func() Snapshot

	header     *widgets.Paragraph
	opsChart   *widgets.Plot
	errorChart *widgets.Plot
	gauge      *widgets.Gauge
	statsTable *widgets.Table
	logsList   *widgets.List

	// Historical data
	opsHistory       []float64
	errorHistory     []float64
	maxDataPoints    int
	last             Snapshot
	currentOpsPerSec float64
	currentErrorRate float64
	startTime        time.Time

	mu   sync.Mutex
	logs []string
}

// New creates a dashboard polling source at each refresh.
func New(title string, source func() Snapshot) *Dashboard {
	return &Dashboard{
		title:         title,
		source:        source,
		opsHistory:    make([]float64, 0, 100),
		errorHistory:  make([]float64, 0, 100),
		maxDataPoints: 30,
		startTime:     time.Now(),
	}
}

// Init initializes the dashboard widgets
func (d *Dashboard) Init() error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("failed to initialize termui: %w", err)
	}

	d.header = widgets.NewParagraph()
	d.header.Title = d.title
	d.header.Text = "Press 'q' to quit"
	d.header.BorderStyle.Fg = ui.ColorCyan
	d.header.TitleStyle.Fg = ui.ColorWhite
	d.header.TitleStyle.Modifier = ui.ModifierBold

	d.opsChart = newPlot("Operations/sec (thousands)", ui.ColorGreen)
	d.errorChart = newPlot("Error Rate %", ui.ColorRed)

	d.gauge = widgets.NewGauge()
	d.gauge.Title = "Throughput"
	d.gauge.BarColor = ui.ColorClear
	d.gauge.BorderStyle.Fg = ui.ColorCyan
	d.gauge.LabelStyle.Fg = ui.ColorWhite

	d.statsTable = widgets.NewTable()
	d.statsTable.Title = "Client"
	d.statsTable.Rows = statsRows(Snapshot{})
	d.statsTable.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.statsTable.RowSeparator = false
	d.statsTable.BorderStyle.Fg = ui.ColorMagenta
	d.statsTable.RowStyles[0] = ui.NewStyle(ui.ColorWhite, ui.ColorClear, ui.ModifierBold)

	d.logsList = widgets.NewList()
	d.logsList.Title = "Logs"
	d.logsList.Rows = []string{"Waiting for events..."}
	d.logsList.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.logsList.BorderStyle.Fg = ui.ColorCyan

	d.layout()
	return nil
}

func newPlot(title string, color ui.Color) *widgets.Plot {
	p := widgets.NewPlot()
	p.Title = title
	p.Data = [][]float64{{0, 0}} // Plot needs at least 2 points
	p.LineColors[0] = color
	p.AxesColor = ui.ColorWhite
	p.Marker = widgets.MarkerBraille
	p.HorizontalScale = 1000 // hides the X-axis labels
	return p
}

// layout arranges widgets on screen
func (d *Dashboard) layout() {
	termWidth, termHeight := ui.TerminalDimensions()

	// Chart width minus borders and Y-axis labels
	d.maxDataPoints = max(termWidth/2-10, 10)

	d.header.SetRect(0, 0, termWidth, 3)
	d.opsChart.SetRect(0, 3, termWidth/2, 13)
	d.errorChart.SetRect(termWidth/2, 3, termWidth, 13)
	d.gauge.SetRect(0, 13, termWidth, 16)
	d.statsTable.SetRect(0, 16, termWidth, 28)
	d.logsList.SetRect(0, 28, termWidth, termHeight)
}

// observe folds a new snapshot into the rates and history.
func (d *Dashboard) observe(snap Snapshot) {
	if !d.last.Timestamp.IsZero() {
		elapsed := snap.Timestamp.Sub(d.last.Timestamp).Seconds()
		if elapsed > 0 {
			ops := snap.Workload.TotalOps - d.last.Workload.TotalOps
			failed := snap.Workload.FailedOps - d.last.Workload.FailedOps

			d.currentOpsPerSec = float64(ops) / elapsed
			d.currentErrorRate = 0
			if ops > 0 {
				d.currentErrorRate = float64(failed) / float64(ops)
			}

			d.opsHistory = appendBounded(d.opsHistory, d.currentOpsPerSec/1000, d.maxDataPoints)
			d.errorHistory = appendBounded(d.errorHistory, d.currentErrorRate*100, d.maxDataPoints)
		}
	}
	d.last = snap
}

func appendBounded(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

// statsRows returns the client table: one row per stat, then one per breaker.
func statsRows(snap Snapshot) [][]string {
	c := snap.Client
	rows := [][]string{
		{"Stat", "Value"},
		{"Sessions", strconv.FormatInt(c.Sessions, 10)},
		{"Connections", strconv.FormatInt(c.Connections, 10)},
		{"Connects / errors", fmt.Sprintf("%d / %d", c.Connects, c.ConnectErrors)},
		{"Commands", strconv.FormatUint(c.Commands, 10)},
		{"Send / receive errors", fmt.Sprintf("%d / %d", c.SendErrors, c.ReceiveErrors)},
		{"Health checks / failed", fmt.Sprintf("%d / %d", c.HealthChecks, c.HealthCheckFailures)},
		{"Replacements", strconv.FormatUint(c.Replacements, 10)},
	}

	servers := make([]string, 0, len(snap.Breakers))
	for server := range snap.Breakers {
		servers = append(servers, server)
	}
	slices.Sort(servers)
	for _, server := range servers {
		rows = append(rows, []string{"Circuit " + server, snap.Breakers[server].String()})
	}
	return rows
}

// Update refreshes the widgets with the latest data
func (d *Dashboard) Update() {
	snap := d.source()
	d.observe(snap)

	if len(d.opsHistory) >= 2 {
		d.opsChart.Data[0] = slices.Clone(d.opsHistory)
		d.opsChart.Title = fmt.Sprintf("Operations/sec (thousands) - current: %.1fk", d.currentOpsPerSec/1000)
	}
	if len(d.errorHistory) >= 2 {
		d.errorChart.Data[0] = slices.Clone(d.errorHistory)
		d.errorChart.Title = fmt.Sprintf("Error Rate %% (current: %.2f%%)", d.currentErrorRate*100)
	}

	// Full bar at 10k ops/sec
	d.gauge.Percent = min(int(d.currentOpsPerSec/10000*100), 100)
	d.gauge.Label = fmt.Sprintf("%.0f ops/sec | Total: %d | Success: %d | Failed: %d",
		d.currentOpsPerSec, snap.Workload.TotalOps, snap.Workload.SuccessOps, snap.Workload.FailedOps)

	d.statsTable.Rows = statsRows(snap)

	if logs := d.recentLogs(); len(logs) > 0 {
		d.logsList.Rows = logs
	}

	runtime := time.Since(d.startTime).Round(time.Second)
	d.header.Text = fmt.Sprintf("Runtime: %s | Press 'q' to quit", runtime)
}

// AddLog appends a message to the logs panel. It is safe for concurrent use.
func (d *Dashboard) AddLog(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logs = append(d.logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), message))
	if len(d.logs) > maxLogs {
		d.logs = d.logs[len(d.logs)-maxLogs:]
	}
}

// Logf is AddLog with formatting.
func (d *Dashboard) Logf(format string, args ...any) {
	d.AddLog(fmt.Sprintf(format, args...))
}

func (d *Dashboard) recentLogs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.logs)
}

// Render draws the dashboard
func (d *Dashboard) Render() {
	ui.Render(d.header, d.opsChart, d.errorChart, d.gauge, d.statsTable, d.logsList)
}

// Run draws the dashboard until done is closed or the user quits.
func (d *Dashboard) Run(done <-chan struct{}) error {
	if err := d.Init(); err != nil {
		return err
	}
	defer ui.Close()

	uiEvents := ui.PollEvents()
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				d.layout()
				ui.Clear()
				d.Render()
			}
		case <-ticker.C:
			d.Update()
			d.Render()
		}
	}
}

// FIUS sensor workbench - terminal interface for the in-seat presence
// detection notebook pipelines.
//
// Copyright (c) 2025 Mandar Kale
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/artifacts"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/cli"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/config"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/lifecycle"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/logging"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/mailbox"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/pipeline"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/proc"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/ui/components"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/ui/styles"
	"github.com/MandarGK/FIUS-Based-Infant-Presence-Detection-in-Car-Seat/internal/worker"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async delivery from watcher callbacks
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func sendToProgram(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func main() {
	args, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s", err, cli.Usage())
		os.Exit(2)
	}

	switch args.Command {
	case cli.CmdHelp:
		fmt.Print(cli.Usage())
	case cli.CmdVersion:
		fmt.Printf("fius-workbench %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	case cli.CmdRun:
		os.Exit(runHeadless(args))
	case cli.CmdConsole:
		os.Exit(runConsole(args))
	default:
		os.Exit(runTUI(args))
	}
}

// =============================================================================
// SHARED WIRING
// =============================================================================

// app bundles the long-lived subsystems every entry point needs.
type app struct {
	cfg     *config.Config
	flag    *lifecycle.Flag
	procs   *proc.Registry
	workers *worker.Registry
	mb      *mailbox.Mailbox
	runner  *pipeline.Runner
	coord   *lifecycle.Coordinator
	store   *artifacts.Store
}

// buildApp loads configuration and assembles the orchestration core.
func buildApp(args cli.Args) (*app, error) {
	if args.ConfigPath != "" {
		os.Setenv("FIUS_CONFIG", args.ConfigPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flag := &lifecycle.Flag{}
	procs := proc.New(cfg.Shutdown.ProcessGrace(), cfg.Shutdown.ProcessPoll())
	workers := worker.NewRegistry()
	mb := mailbox.New()
	runner := pipeline.NewRunner(pipeline.Options{
		Python:    cfg.Python,
		ReportTag: cfg.Report.Tag,
		PanelWait: cfg.Shutdown.PanelReady(),
		Flag:      flag,
		Processes: procs,
		Mailbox:   mb,
	})
	coord := lifecycle.NewCoordinator(flag, procs, workers, cfg.Shutdown.WorkerJoin())
	store := artifacts.NewStore(cfg.UI.ArtifactDir)

	coord.OnShutdown(mb.Close)
	coord.OnShutdown(store.ReleaseAll)

	return &app{
		cfg:     cfg,
		flag:    flag,
		procs:   procs,
		workers: workers,
		mb:      mb,
		runner:  runner,
		coord:   coord,
		store:   store,
	}, nil
}

// taskNames lists the configured task identifiers in display order.
func (a *app) taskNames() []string {
	names := make([]string, len(a.cfg.Tasks))
	for i, t := range a.cfg.Tasks {
		names[i] = t.Name
	}
	return names
}

// =============================================================================
// HEADLESS AND CONSOLE MODES
// =============================================================================

// runOnce executes one task pipeline synchronously, streaming its
// messages to stdout. Used by the run and console entry points.
func runOnce(a *app, task string) (mailbox.Status, error) {
	taskCfg, ok := a.cfg.Task(task)
	if !ok {
		return mailbox.StatusFailed, fmt.Errorf("unknown task: %s (have: %s)",
			task, strings.Join(a.taskNames(), ", "))
	}
	spec := pipeline.FromConfig(a.cfg, taskCfg)

	run := a.mb.BeginRun(task)
	panelReady := make(chan struct{})
	close(panelReady) // stdout is always ready

	result := make(chan mailbox.Status, 1)
	a.workers.Spawn(func() {
		result <- a.runner.Run(spec, run, panelReady)
	})

	// Drain until the completion message for this run arrives.
	for {
		msg, ok := a.mb.Next()
		if !ok {
			return mailbox.StatusCancelled, nil
		}
		switch msg.Kind {
		case mailbox.KindLog:
			fmt.Println(msg.Line)
		case mailbox.KindArtifact:
			switch msg.Region {
			case mailbox.RegionPlots:
				path, err := a.store.Save(pngName(msg.Name), msg.Payload)
				if err != nil {
					fmt.Printf("Error saving plot %s: %v\n", msg.Name, err)
				} else {
					fmt.Printf("Plot saved: %s\n", path)
				}
			case mailbox.RegionReport:
				fmt.Printf("\n===== Notebook output (%s) =====\n%s\n", msg.Name, string(msg.Payload))
			}
		case mailbox.KindCompletion:
			status := <-result
			if msg.Detail != "" {
				fmt.Printf("%s: %s %s\n", msg.Task, msg.Status, msg.Detail)
			} else {
				fmt.Printf("%s: %s\n", msg.Task, msg.Status)
			}
			return status, nil
		}
	}
}

// exitCode maps a terminal run status onto a process exit code.
func exitCode(status mailbox.Status) int {
	switch status {
	case mailbox.StatusCompleted:
		return 0
	case mailbox.StatusDegraded:
		return 1
	case mailbox.StatusCancelled:
		return 130
	default:
		return 2
	}
}

// installSignalHandler turns SIGINT/SIGTERM into an orderly shutdown.
func installSignalHandler(a *app) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		slog.Info("signal received, shutting down")
		a.coord.Initiate()
		os.Exit(130)
	}()
}

func runHeadless(args cli.Args) int {
	closeLog, err := logging.Setup("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()
	logging.SetVerbose(args.Verbose)

	a, err := buildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	installSignalHandler(a)

	status, err := runOnce(a, args.Task)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	a.coord.Initiate()
	return exitCode(status)
}

func runConsole(args cli.Args) int {
	closeLog, err := logging.Setup("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()
	logging.SetVerbose(args.Verbose)

	a, err := buildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	installSignalHandler(a)

	console := cli.NewConsole(a.taskNames(), func(task string) error {
		status, err := runOnce(a, task)
		if err != nil {
			return err
		}
		if status != mailbox.StatusCompleted {
			return fmt.Errorf("finished with status: %s", status)
		}
		return nil
	})
	if err := console.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	a.coord.Initiate()
	return 0
}

// pngName swaps an array file's extension for .png.
func pngName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + ".png"
}

// =============================================================================
// TUI MODE
// =============================================================================

func runTUI(args cli.Args) int {
	closeLog, err := logging.Setup(config.LogPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()
	logging.SetVerbose(args.Verbose)

	a, err := buildApp(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	m := newModel(a)
	p := tea.NewProgram(m, tea.WithAltScreen())

	programMu.Lock()
	programRef = p
	programMu.Unlock()

	var watcher *artifacts.Watcher
	if a.cfg.UI.WatchProcessed {
		watcher, err = artifacts.NewWatcher(a.cfg.ProcessedPath(""), func(path string) {
			sendToProgram(processedChangedMsg(path))
		})
		if err != nil {
			slog.Warn("processed data watcher unavailable", "error", err)
		}
	}

	_, runErr := p.Run()

	programMu.Lock()
	programRef = nil
	programMu.Unlock()

	if watcher != nil {
		watcher.Close()
	}
	// Covers exits that bypassed the quit key (panic, terminal loss).
	a.coord.Initiate()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	return 0
}

// =============================================================================
// MODEL
// =============================================================================

// Tab indices, matching the tab bar order.
const (
	tabLog = iota
	tabPlots
	tabReport
)

// taskMsg wraps one mailbox message for the update loop.
type taskMsg mailbox.Message

// mailboxClosedMsg means the mailbox drained after close; no more
// task messages will arrive.
type mailboxClosedMsg struct{}

// shutdownDoneMsg means the coordinator finished the shutdown sequence.
type shutdownDoneMsg struct{}

// processedChangedMsg carries a changed FFT array path from the watcher.
type processedChangedMsg string

type model struct {
	app   *app
	theme *styles.Theme

	tabs    components.TabBar
	logview components.LogView
	gallery components.Gallery
	report  components.Report
	status  components.StatusBar

	width  int
	height int

	running      bool
	shuttingDown bool
	activeTask   string
}

func newModel(a *app) *model {
	theme := styles.NewTheme()
	return &model{
		app:     a,
		theme:   theme,
		tabs:    components.NewTabBar(theme, "Log", "FFT Plots", "Report"),
		logview: components.NewLogView(theme, a.cfg.UI.MaxLogLines),
		gallery: components.NewGallery(theme),
		report:  components.NewReport(theme),
		status:  components.NewStatusBar(theme),
	}
}

func (m *model) Init() tea.Cmd {
	return m.waitForMailbox()
}

// waitForMailbox blocks on the next cross-thread message. The command is
// re-issued after every delivery so the loop keeps draining.
func (m *model) waitForMailbox() tea.Cmd {
	mb := m.app.mb
	return func() tea.Msg {
		msg, ok := mb.Next()
		if !ok {
			return mailboxClosedMsg{}
		}
		return taskMsg(msg)
	}
}

// shutdownCmd runs the full shutdown sequence off the update loop.
func (m *model) shutdownCmd() tea.Cmd {
	coord := m.app.coord
	return func() tea.Msg {
		coord.Initiate()
		return shutdownDoneMsg{}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case taskMsg:
		cmd := m.handleTaskMsg(mailbox.Message(msg))
		return m, tea.Batch(cmd, m.waitForMailbox())

	case mailboxClosedMsg:
		return m, nil

	case shutdownDoneMsg:
		return m, tea.Quit

	case processedChangedMsg:
		m.logview.Append(fmt.Sprintf("Processed data updated: %s", string(msg)))
		return m, nil
	}

	// Spinner ticks and anything else the status bar animates on.
	return m, m.status.Update(msg)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.shuttingDown {
			return m, nil
		}
		m.shuttingDown = true
		m.status.ShuttingDown()
		return m, m.shutdownCmd()

	case "tab", "right":
		m.tabs.Next()
		return m, nil
	case "shift+tab", "left":
		m.tabs.Prev()
		return m, nil

	case "1", "2", "3":
		idx := int(msg.String()[0] - '1')
		return m, m.startTask(idx)
	}

	// Scroll keys go to whichever pane is visible.
	switch m.tabs.Active {
	case tabLog:
		return m, m.logview.Update(msg)
	case tabReport:
		return m, m.report.Update(msg)
	}
	return m, nil
}

// startTask launches one pipeline on a background worker. A second
// launch while one is in flight is refused, matching the single-run
// button discipline of the UI.
func (m *model) startTask(idx int) tea.Cmd {
	if m.running || m.shuttingDown {
		return nil
	}
	if idx < 0 || idx >= len(m.app.cfg.Tasks) {
		return nil
	}
	taskCfg := m.app.cfg.Tasks[idx]
	spec := pipeline.FromConfig(m.app.cfg, taskCfg)

	run := m.app.mb.BeginRun(taskCfg.Name)
	m.logview.Clear()
	m.gallery.Clear()
	m.report.Clear()

	// Panels are rebuilt above, so readiness is immediate. The channel
	// still flows through the runner so report delivery stays bounded.
	panelReady := make(chan struct{})
	close(panelReady)

	runner := m.app.runner
	m.app.workers.Spawn(func() {
		runner.Run(spec, run, panelReady)
	})

	m.running = true
	m.activeTask = taskCfg.Name
	m.tabs.Active = tabLog
	return m.status.StartRun(taskCfg.Name)
}

// handleTaskMsg routes one delivered message into the panels.
func (m *model) handleTaskMsg(msg mailbox.Message) tea.Cmd {
	switch msg.Kind {
	case mailbox.KindLog:
		m.logview.Append(msg.Line)

	case mailbox.KindArtifact:
		switch msg.Region {
		case mailbox.RegionPlots:
			path, err := m.app.store.Save(pngName(msg.Name), msg.Payload)
			if err != nil {
				m.logview.Append(fmt.Sprintf("Error saving plot %s: %v", msg.Name, err))
				return nil
			}
			m.gallery.Add(components.Plot{
				Name:    msg.Name,
				Path:    path,
				Preview: msg.Preview,
			})
		case mailbox.RegionReport:
			m.report.SetContent(string(msg.Payload))
		}

	case mailbox.KindCompletion:
		m.running = false
		m.status.FinishRun(msg.Status, msg.Detail)
		if m.report.HasContent() {
			m.tabs.Active = tabReport
		}
	}
	return nil
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height

	// header + tab bar + status bar + help line
	contentHeight := height - 4
	if contentHeight < 3 {
		contentHeight = 3
	}
	m.logview.SetSize(width, contentHeight)
	m.report.SetSize(width, contentHeight)
	m.gallery.SetWidth(width)
	m.status.SetWidth(width)
}

func (m *model) View() string {
	var b strings.Builder

	title := "FIUS Sensor Workbench"
	if m.activeTask != "" {
		if t, ok := m.app.cfg.Task(m.activeTask); ok && t.Title != "" {
			title = fmt.Sprintf("%s - %s", title, t.Title)
		}
	}
	b.WriteString(m.theme.Header.Render(title))
	b.WriteString("\n")
	b.WriteString(m.tabs.View())
	b.WriteString("\n")

	switch m.tabs.Active {
	case tabLog:
		b.WriteString(m.logview.View())
	case tabPlots:
		b.WriteString(m.gallery.View())
	case tabReport:
		b.WriteString(m.report.View())
	}
	b.WriteString("\n")
	b.WriteString(m.status.View())
	b.WriteString("\n")
	b.WriteString(m.theme.Help.Render("1-3 run task · tab switch pane · q quit"))

	return b.String()
}

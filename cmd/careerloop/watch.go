package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiBase := fs.String("api", "http://127.0.0.1:8091", "base URL for CareerLoop API")
	token := fs.String("token", os.Getenv("CAREERLOOP_API_TOKEN"), "Bearer token for API auth")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: careerloop watch [--api <url>] [--token <token>] <conversation_id>")
	}
	if strings.TrimSpace(*token) == "" {
		return fmt.Errorf("token is required (use --token or CAREERLOOP_API_TOKEN)")
	}

	cfg := watchConfig{
		APIBase:        strings.TrimRight(*apiBase, "/"),
		Token:          *token,
		ConversationID: fs.Arg(0),
	}

	p := tea.NewProgram(newWatchModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type watchConfig struct {
	APIBase        string
	Token          string
	ConversationID string
}

type streamEventMsg struct {
	Event string
	Data  []byte
	Err   error
	EOF   bool
}

type streamStartedMsg struct{}

type reconnectMsg struct{}

type watchApproval struct {
	Title string `json:"title"`
	Agent string `json:"agent"`
}

type watchEntry struct {
	Role            string         `json:"role"`
	Content         string         `json:"content"`
	InProgress      bool           `json:"in_progress"`
	ActiveTools     []string       `json:"active_tools"`
	PendingApproval *watchApproval `json:"pending_approval"`
}

type transcriptView struct {
	ID         string       `json:"id"`
	SessionID  string       `json:"session_id"`
	InProgress bool         `json:"in_progress"`
	Entries    []watchEntry `json:"entries"`
}

type watchModel struct {
	cfg          watchConfig
	streamEvents chan streamEventMsg
	width        int
	height       int
	connected    bool
	reconnecting bool
	err          error
	view         transcriptView
	lastBeat     time.Time
	log          []string
}

func newWatchModel(cfg watchConfig) watchModel {
	return watchModel{
		cfg:          cfg,
		streamEvents: make(chan streamEventMsg, 32),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		startEventStreamCmd(m.cfg, m.streamEvents),
		waitForStreamEventCmd(m.streamEvents),
	)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	case streamStartedMsg:
		m.connected = true
		m.reconnecting = false
		return m, nil
	case reconnectMsg:
		m.streamEvents = make(chan streamEventMsg, 32)
		return m, tea.Batch(
			startEventStreamCmd(m.cfg, m.streamEvents),
			waitForStreamEventCmd(m.streamEvents),
		)
	case streamEventMsg:
		if msg.Err != nil {
			m.err = msg.Err
			m.connected = false
			m.appendLog("stream error: " + msg.Err.Error())
			return m, nil
		}
		if msg.EOF {
			m.connected = false
			m.reconnecting = true
			m.appendLog("stream closed, reconnecting")
			return m, reconnectAfterCmd(2 * time.Second)
		}
		m.handleEvent(msg.Event, msg.Data)
		return m, waitForStreamEventCmd(m.streamEvents)
	default:
		return m, nil
	}
}

func (m *watchModel) handleEvent(event string, data []byte) {
	switch event {
	case "transcript":
		var view transcriptView
		if err := json.Unmarshal(data, &view); err != nil {
			m.appendLog("transcript (unparsed)")
			return
		}
		m.view = view
		line := fmt.Sprintf("[%s] transcript: %d entries", time.Now().Format("15:04:05"), len(view.Entries))
		if view.InProgress {
			line += " (streaming)"
		}
		m.appendLog(line)
	case "heartbeat":
		m.lastBeat = time.Now()
	default:
		m.appendLog(fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), event))
	}
}

func (m watchModel) View() string {
	accent := lipgloss.Color("#0EA5E9")
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#0B1220")).
		Background(accent).
		Padding(0, 1).
		Render("CareerLoop Watch")

	statusLabel := "IDLE"
	statusStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#0B1220")).
		Background(lipgloss.Color("#6B7280")).
		Padding(0, 1)
	if m.view.InProgress {
		statusLabel = "STREAMING"
		statusStyle = statusStyle.Background(accent)
	}

	sessionLabel := m.view.SessionID
	if sessionLabel == "" {
		sessionLabel = "-"
	}
	streamLabel := connectionLabel(m.connected, m.reconnecting, m.err)
	meta := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7DD3FC")).
		Render(fmt.Sprintf("conversation=%s  session=%s  api=%s  stream=%s", m.cfg.ConversationID, sessionLabel, m.cfg.APIBase, streamLabel))

	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7DD3FC")).
		Render("q: quit")
	if m.err != nil {
		footer = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Render("error: " + m.err.Error() + "  q: quit")
	}

	panelWidth := bodyWidth(m.width)
	transcriptHeight, logHeight := panelHeights(m.height)

	transcriptPanel := renderPanel("Transcript", m.transcriptPanelLines(transcriptHeight-1, panelWidth-4), panelWidth, transcriptHeight, accent)
	logLines := m.log
	if len(logLines) == 0 {
		logLines = []string{"waiting for events..."}
	}
	logPanel := renderPanel("Activity", logLines, panelWidth, logHeight, accent)

	return strings.Join([]string{title + " " + statusStyle.Render(statusLabel), meta, transcriptPanel, logPanel, footer}, "\n")
}

// transcriptPanelLines flattens transcript entries into display lines, keeping
// the tail when there are more lines than fit.
func (m *watchModel) transcriptPanelLines(maxLines, width int) []string {
	if len(m.view.Entries) == 0 {
		return []string{"no messages yet"}
	}

	var lines []string
	for _, entry := range m.view.Entries {
		prefix := "coach"
		switch entry.Role {
		case "user":
			prefix = "you"
		case "system":
			prefix = "system"
		}

		content := entry.Content
		if entry.InProgress && content == "" {
			content = "..."
		}
		for i, part := range strings.Split(content, "\n") {
			if i == 0 {
				lines = append(lines, trimForLog(prefix+"> "+part, width))
			} else {
				lines = append(lines, trimForLog("  "+part, width))
			}
		}
		if len(entry.ActiveTools) > 0 {
			lines = append(lines, trimForLog("  [tools: "+strings.Join(entry.ActiveTools, ", ")+"]", width))
		}
		if entry.PendingApproval != nil {
			lines = append(lines, trimForLog("  [approval pending: "+entry.PendingApproval.Title+"]", width))
		}
	}

	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

func panelHeights(terminalHeight int) (transcriptLines, logLines int) {
	available := terminalHeight - 5
	if available < 14 {
		available = 14
	}
	logLines = 6
	transcriptLines = available - logLines
	if transcriptLines < 8 {
		transcriptLines = 8
	}
	return transcriptLines, logLines
}

func renderPanel(title string, lines []string, width, height int, accent lipgloss.Color) string {
	if height < 3 {
		height = 3
	}
	contentHeight := height - 1
	if len(lines) > contentHeight {
		lines = lines[len(lines)-contentHeight:]
	}
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	content := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(title) + "\n" + strings.Join(lines, "\n")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Foreground(lipgloss.Color("#E0F2FE")).
		Background(lipgloss.Color("#0B1220")).
		Width(width).
		Height(height).
		Padding(0, 1).
		Render(content)
}

func (m *watchModel) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > 200 {
		m.log = m.log[len(m.log)-200:]
	}
}

func reconnectAfterCmd(delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(delay)
		return reconnectMsg{}
	}
}

func startEventStreamCmd(cfg watchConfig, out chan streamEventMsg) tea.Cmd {
	return func() tea.Msg {
		go streamConversationEvents(cfg, out)
		return streamStartedMsg{}
	}
}

func waitForStreamEventCmd(in <-chan streamEventMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-in
		if !ok {
			return streamEventMsg{EOF: true}
		}
		return msg
	}
}

func streamConversationEvents(cfg watchConfig, out chan<- streamEventMsg) {
	defer close(out)

	u := fmt.Sprintf("%s/v1/conversations/%s/events", cfg.APIBase, url.PathEscape(cfg.ConversationID))
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		out <- streamEventMsg{Err: fmt.Errorf("create request: %w", err)}
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		out <- streamEventMsg{Err: fmt.Errorf("connect stream: %w", err)}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		out <- streamEventMsg{Err: fmt.Errorf("stream request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 2*1024*1024)

	var eventName string
	var dataLines []string

	flushEvent := func() {
		if len(dataLines) == 0 {
			eventName = ""
			return
		}
		if eventName == "" {
			eventName = "message"
		}
		out <- streamEventMsg{
			Event: eventName,
			Data:  []byte(strings.Join(dataLines, "\n")),
		}
		eventName = ""
		dataLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			flushEvent()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			part := strings.TrimPrefix(line, "data:")
			if strings.HasPrefix(part, " ") {
				part = part[1:]
			}
			dataLines = append(dataLines, part)
		}
	}
	flushEvent()

	if err := scanner.Err(); err != nil {
		out <- streamEventMsg{Err: fmt.Errorf("read stream: %w", err)}
		return
	}
	out <- streamEventMsg{EOF: true}
}

func trimForLog(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func bodyWidth(terminalWidth int) int {
	if terminalWidth <= 0 {
		return 80
	}
	w := terminalWidth - 2
	if w < 40 {
		return 40
	}
	return w
}

func connectionLabel(connected, reconnecting bool, err error) string {
	if err != nil {
		return "error"
	}
	if reconnecting {
		return "reconnecting"
	}
	if connected {
		return "open"
	}
	return "connecting"
}

package traceconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
	"agritrace/internal/usecase/lots"
)

const maxShownEvents = 6
const maxShownFeedback = 4
const maxAuditLines = 8

type TraceService interface {
	QueryLots(ctx context.Context, query lots.LotQuery) ([]lot.Lot, error)
	Trace(ctx context.Context, lotID string) (lots.TraceView, error)
	RelayOnce(ctx context.Context, name string, batch int) (lots.RelayResult, error)
}

type Options struct {
	StatusFilter    []string
	FarmerID        string
	RelayName       string
	RefreshInterval time.Duration
}

type traceModel struct {
	ctx             context.Context
	service         TraceService
	statusFilter    []string
	farmerID        string
	relayName       string
	refreshInterval time.Duration

	items         []lot.Lot
	selectedIndex int
	detail        lots.TraceView
	hasDetail     bool
	status        string
	auditLogs     []string
}

type lotsLoadedMsg struct {
	items []lot.Lot
	err   error
}

type detailLoadedMsg struct {
	lotID string
	view  lots.TraceView
	err   error
}

type tickMsg struct{}

type relayDoneMsg struct {
	result lots.RelayResult
	err    error
}

func NewTraceModel(ctx context.Context, service TraceService, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &traceModel{
		ctx:             ctx,
		service:         service,
		statusFilter:    options.StatusFilter,
		farmerID:        strings.TrimSpace(options.FarmerID),
		relayName:       firstNonEmpty(options.RelayName, "console"),
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *traceModel) Init() tea.Cmd {
	return tea.Batch(m.loadLotsCmd(), m.tickCmd())
}

func (m *traceModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadLotsCmd(), m.tickCmd())
	case lotsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.items = msg.items
		if len(m.items) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "no lots match"
			return m, nil
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		if m.selectedIndex >= len(m.items) {
			m.selectedIndex = len(m.items) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d lots", len(m.items))
		return m, m.loadSelectedDetailCmd()
	case detailLoadedMsg:
		if !m.isCurrentSelection(msg.lotID) {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "trace failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.view
		m.hasDetail = true
		return m, nil
	case relayDoneMsg:
		if msg.err != nil {
			m.status = "relay failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("relay published=%d anchored=%d", msg.result.Published, msg.result.Anchored)
		}
		m.appendAuditLog(msg)
		return m, m.loadSelectedDetailCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadLotsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.items)-1 {
				m.selectedIndex++
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "r":
			m.status = "relaying"
			return m, m.relayCmd()
		}
	}
	return m, nil
}

func (m *traceModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("AgriTrace Lots"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"status=%s farmer=%s relay=%s refresh=%s",
		firstNonEmpty(strings.Join(m.statusFilter, ","), "all"),
		firstNonEmpty(m.farmerID, "-"),
		m.relayName,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Lots"))
	builder.WriteString("\n")
	if len(m.items) == 0 {
		builder.WriteString(dimStyle.Render("- no lots"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.items {
			status, _ := lot.CurrentStatus(item)
			line := fmt.Sprintf("%s [%s] %s farmer=%s", item.ID, status, item.ProduceName, item.Farmer.Name)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Trace"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		l := m.detail.Lot
		builder.WriteString(fmt.Sprintf("Lot: %s\n", l.ID))
		builder.WriteString(fmt.Sprintf("Produce: %s x%d\n", l.ProduceName, l.ItemCount))
		builder.WriteString(fmt.Sprintf("Origin: %s\n", l.Origin))
		builder.WriteString(fmt.Sprintf("Status: %s\n", m.detail.Status))
		builder.WriteString(fmt.Sprintf("Anchored: %d/%d\n", len(m.detail.Anchors), len(l.History)))

		builder.WriteString("\nJourney:\n")
		start := len(l.History) - maxShownEvents
		if start < 0 {
			start = 0
		}
		for _, event := range l.History[start:] {
			builder.WriteString(fmt.Sprintf("- %s %s @ %s by %s\n", event.Timestamp, event.Status, event.Location, event.Actor))
		}

		builder.WriteString("\nFeedback:\n")
		feedback := m.detail.Feedback
		if len(feedback) == 0 {
			builder.WriteString("- none\n")
		}
		if len(feedback) > maxShownFeedback {
			feedback = feedback[len(feedback)-maxShownFeedback:]
		}
		for _, item := range feedback {
			builder.WriteString(fmt.Sprintf("- %s %s\n", item.CreatedAt, firstNonEmptyLine(item.Text)))
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n")
	}
	for _, line := range m.auditLogs {
		builder.WriteString("- " + line + "\n")
	}
	builder.WriteString("\n")

	builder.WriteString(dimStyle.Render("Keys: up/k down/j move  g refresh  r relay once  q quit"))
	return builder.String()
}

func (m *traceModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *traceModel) loadLotsCmd() tea.Cmd {
	query := lots.LotQuery{Statuses: m.statusFilter, FarmerID: m.farmerID}
	return func() tea.Msg {
		items, err := m.service.QueryLots(m.ctx, query)
		return lotsLoadedMsg{items: items, err: err}
	}
}

func (m *traceModel) loadSelectedDetailCmd() tea.Cmd {
	lotID, ok := m.selectedLotID()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		view, err := m.service.Trace(m.ctx, lotID)
		return detailLoadedMsg{lotID: lotID, view: view, err: err}
	}
}

func (m *traceModel) relayCmd() tea.Cmd {
	name := m.relayName
	return func() tea.Msg {
		result, err := m.service.RelayOnce(m.ctx, name, 0)
		return relayDoneMsg{result: result, err: err}
	}
}

func (m *traceModel) selectedLotID() (string, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return "", false
	}
	return m.items[m.selectedIndex].ID, true
}

// isCurrentSelection drops detail responses that arrive after the user has
// moved on to another lot.
func (m *traceModel) isCurrentSelection(lotID string) bool {
	current, ok := m.selectedLotID()
	return ok && current == lotID
}

func (m *traceModel) appendAuditLog(msg relayDoneMsg) {
	outcome := fmt.Sprintf("cursor=%d->%d published=%d", msg.result.CursorBefore, msg.result.CursorAfter, msg.result.Published)
	if msg.err != nil {
		outcome = "error: " + msg.err.Error()
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s action=relay name=%s result=%s", timestamp, m.relayName, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	logging.Info(m.ctx, "trace console action",
		slog.String("action", "relay"),
		slog.String("relay", m.relayName),
		slog.String("result", outcome),
	)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

package dashboardconsole

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
	"agritrace/internal/ports"
	"agritrace/internal/usecase/lots"
)

const maxAuditLines = 8

type DashboardService interface {
	Dashboard(ctx context.Context, actor ports.Actor) (lots.Dashboard, error)
	AdvanceLot(ctx context.Context, actor ports.Actor, input lots.AdvanceLotInput) (lot.Lot, error)
}

type Options struct {
	Actor           ports.Actor
	RefreshInterval time.Duration
}

// row is one selectable line; section is the dashboard bucket it came from.
type row struct {
	section string
	item    lots.DashboardLot
}

type dashboardModel struct {
	ctx             context.Context
	service         DashboardService
	actor           ports.Actor
	refreshInterval time.Duration

	rows          []row
	summary       string
	selectedIndex int
	status        string
	auditLogs     []string
}

type dashboardLoadedMsg struct {
	view lots.Dashboard
	err  error
}

type tickMsg struct{}

type actionDoneMsg struct {
	lotID  string
	target lot.Status
	err    error
}

func NewDashboardModel(ctx context.Context, service DashboardService, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &dashboardModel{
		ctx:             ctx,
		service:         service,
		actor:           options.Actor,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.tickCmd())
}

func (m *dashboardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case dashboardLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.rows, m.summary = flatten(msg.view)
		if m.selectedIndex >= len(m.rows) {
			m.selectedIndex = len(m.rows) - 1
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		m.status = fmt.Sprintf("refreshed, %d lots", len(m.rows))
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("advance %s failed: %v", msg.lotID, msg.err)
		} else {
			m.status = fmt.Sprintf("advanced %s to %s", msg.lotID, msg.target)
		}
		m.appendAuditLog(msg)
		return m, m.loadCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.rows)-1 {
				m.selectedIndex++
			}
			return m, nil
		case "a":
			return m, m.advanceCmd()
		}
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("AgriTrace Dashboard"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"actor=%s role=%s refresh=%s",
		firstNonEmpty(m.actor.DisplayName, m.actor.ID),
		m.actor.Role,
		m.refreshInterval,
	)))
	builder.WriteString("\n")
	if m.summary != "" {
		builder.WriteString(dimStyle.Render(m.summary))
		builder.WriteString("\n")
	}
	builder.WriteString("\n")

	currentSection := ""
	if len(m.rows) == 0 {
		builder.WriteString(dimStyle.Render("- no lots"))
		builder.WriteString("\n")
	}
	for index, r := range m.rows {
		if r.section != currentSection {
			currentSection = r.section
			builder.WriteString(sectionStyle.Render(currentSection))
			builder.WriteString("\n")
		}
		line := fmt.Sprintf("%s [%s] %s x%d", r.item.Lot.ID, r.item.Status, r.item.Lot.ProduceName, r.item.Lot.ItemCount)
		if r.item.ShippedBy != "" {
			line += " by " + r.item.ShippedBy
		}
		if index == m.selectedIndex {
			builder.WriteString(selectedStyle.Render("> " + line))
		} else {
			builder.WriteString("  " + line)
		}
		builder.WriteString("\n")
	}
	builder.WriteString("\n")

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

	builder.WriteString(dimStyle.Render("Keys: up/k down/j move  g refresh  a advance  q quit"))
	return builder.String()
}

func (m *dashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *dashboardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		view, err := m.service.Dashboard(m.ctx, m.actor)
		return dashboardLoadedMsg{view: view, err: err}
	}
}

// advanceCmd moves the selected lot one step, but only when this actor's
// role is the one that triggers that step.
func (m *dashboardModel) advanceCmd() tea.Cmd {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.rows) {
		m.status = "no lot selected"
		return nil
	}
	selected := m.rows[m.selectedIndex].item
	next, ok := lot.NextStatus(selected.Status)
	if !ok {
		m.status = selected.Lot.ID + " is already " + string(selected.Status)
		return nil
	}
	if role, _ := lot.RequiredRole(next); role != m.actor.Role {
		m.status = fmt.Sprintf("%s moves %s to %s, not %s", role, selected.Lot.ID, next, m.actor.Role)
		return nil
	}

	lotID := selected.Lot.ID
	m.status = "advancing " + lotID
	return func() tea.Msg {
		_, err := m.service.AdvanceLot(m.ctx, m.actor, lots.AdvanceLotInput{LotID: lotID, Status: string(next)})
		return actionDoneMsg{lotID: lotID, target: next, err: err}
	}
}

func (m *dashboardModel) appendAuditLog(msg actionDoneMsg) {
	outcome := "ok"
	if msg.err != nil {
		outcome = "error: " + msg.err.Error()
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s lot=%s target=%q result=%s", timestamp, msg.lotID, msg.target, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	logging.Info(m.ctx, "dashboard console action",
		slog.String("actor", m.actor.ID),
		slog.String("lot_id", msg.lotID),
		slog.String("target", string(msg.target)),
		slog.String("result", outcome),
	)
}

func flatten(view lots.Dashboard) ([]row, string) {
	var rows []row
	add := func(section string, items []lots.DashboardLot) {
		for _, item := range items {
			rows = append(rows, row{section: section, item: item})
		}
	}

	summary := ""
	switch {
	case view.Farmer != nil:
		add("My Lots", view.Farmer.Lots)
		summary = fmt.Sprintf("total=%d in-transit=%d", view.Farmer.Total, view.Farmer.InTransit)
	case view.Distributor != nil:
		add("Incoming", view.Distributor.Incoming)
		add("Inventory", view.Distributor.Inventory)
		summary = fmt.Sprintf("inventory items=%d", view.Distributor.InventoryValue)
	case view.Retailer != nil:
		add("Incoming", view.Retailer.Incoming)
		add("On Shelf", view.Retailer.OnShelf)
	}
	return rows, summary
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

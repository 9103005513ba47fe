package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/tradeoff/internal/core/metrics"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.session.Snapshot()
	contentWidth := max(m.width-4, 20)

	sections := []string{
		m.renderHeader(snap),
		m.renderInput(snap, contentWidth),
	}

	if snap.Phase.Busy() {
		sections = append(sections, m.spinner.View()+" "+mutedStyle.Render(busyLabel(snap)))
	}

	if snap.AnalysisResult != "" {
		sections = append(sections, m.renderAnalysis(snap, contentWidth))
	}

	if snap.CanAttachImage() {
		sections = append(sections, m.renderVerification(snap, contentWidth))
	}

	if snap.Phase == workflow.PhaseError && snap.LastError != "" {
		sections = append(sections, errorTextStyle.Render(snap.LastError))
	}

	if n, ok := m.toasts.Current(); ok {
		sections = append(sections, renderToast(n))
	}

	sections = append(sections, m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(snap workflow.Snapshot) string {
	user := "signed out"
	if m.username != "" {
		user = m.username
	}

	parts := []string{
		titleStyle.Render("tradeoff"),
		mutedStyle.Render(user),
		mutedStyle.Render(snap.Phase.Label()),
	}

	if m.backend != "" {
		backend := m.backend
		if m.status != nil {
			if m.status.OK {
				backend += " ●"
			} else {
				backend += " ○ " + m.status.Message
			}
		}
		parts = append(parts, mutedStyle.Render(backend))
	}

	return strings.Join(parts, mutedStyle.Render(" · "))
}

func (m Model) renderInput(snap workflow.Snapshot, width int) string {
	style := panelStyle
	if m.focus == focusDecision && !snap.Phase.Busy() {
		style = focusedPanelStyle
	}

	body := m.input.View()
	if snap.Phase.Busy() && snap.PendingText != "" {
		body = mutedStyle.Render("› " + snap.PendingText)
	}

	return style.Width(width).Render(labelStyle.Render("Decision") + "\n" + body)
}

func (m Model) renderAnalysis(snap workflow.Snapshot, width int) string {
	title := labelStyle.Render("Analysis")
	if snap.LastSubmittedQuery != "" {
		title += mutedStyle.Render(" · " + snap.LastSubmittedQuery)
	}

	parts := []string{title, m.analysis.View()}
	if snap.Metrics != nil {
		parts = append(parts, "", m.renderMetrics(*snap.Metrics))
	}

	return panelStyle.Width(width).Render(strings.Join(parts, "\n"))
}

func (m Model) renderMetrics(mt metrics.Metrics) string {
	rows := []struct {
		label string
		value int
	}{
		{"Financial", mt.FinancialImpact},
		{"Time", mt.TimeImpact},
		{"Health", mt.HealthImpact},
	}

	lines := make([]string, 0, len(rows)+2)
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%-10s %s %3d", r.label, m.bar.ViewAs(float64(r.value)/100), r.value))
	}

	score := verdictStyle(mt.OverallScore).Render(fmt.Sprintf("%d/100", mt.OverallScore))
	lines = append(lines,
		fmt.Sprintf("%-10s %s", "Overall", score),
		mutedStyle.Render(mt.Verdict().Summary()),
	)
	return strings.Join(lines, "\n")
}

func (m Model) renderVerification(snap workflow.Snapshot, width int) string {
	title := labelStyle.Render("Verify with a photo")

	var body string
	switch {
	case m.focus == focusImagePath:
		body = m.pathInput.View() + "\n" + mutedStyle.Render("enter to attach · esc to cancel")
	case snap.VerificationImage == nil:
		body = mutedStyle.Render("Looks like an ongoing activity. Attach a photo with ctrl+o to verify it.")
	case !snap.VerificationImage.Ready():
		body = m.spinner.View() + " reading " + snap.VerificationImage.Handle.Name
	default:
		body = snap.VerificationImage.Encoded.Preview.String() + "\n" +
			mutedStyle.Render("ctrl+v to verify · ctrl+x to remove")
	}

	return panelStyle.Width(width).Render(title + "\n" + body)
}

func busyLabel(snap workflow.Snapshot) string {
	if snap.Phase == workflow.PhaseSubmittingVerification {
		return "Verifying your photo..."
	}
	return "Analyzing your decision..."
}

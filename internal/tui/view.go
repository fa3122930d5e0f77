package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/spiffcs/reviewdeck/internal/format"
	"github.com/spiffcs/reviewdeck/internal/ratelimit"
)

// headerLines + footerLines bound the scroll window.
const (
	headerLines = 3
	footerLines = 3
)

// renderDashboard renders the complete watch view
func renderDashboard(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("  No pull requests. Add repositories with: reviewdeck repos add"))
		b.WriteString("\n")
		b.WriteString(renderHelp())
		return b.String()
	}

	availableHeight := m.windowHeight - headerLines - footerLines
	if availableHeight < 1 {
		availableHeight = 1
	}
	start, end := scrollWindow(m.cursor, len(m.rows), availableHeight)

	for i := start; i < end; i++ {
		b.WriteString(renderRow(m.rows[i], i == m.cursor, m.windowWidth))
		b.WriteString("\n")
	}

	b.WriteString(renderHelp())

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(m.statusMsg)
	}

	return b.String()
}

func renderHeader(m Model) string {
	title := headerStyle.Render("reviewdeck")

	summary := fmt.Sprintf("%s need review · %d total",
		countStyle.Render(fmt.Sprintf("%d", m.snap.Result.ActionableCount)),
		m.snap.Result.VisibleCount())

	parts := []string{title, summary}

	if m.refreshing {
		parts = append(parts, m.spinner.View()+" refreshing")
	} else if !m.snap.LastUpdated.IsZero() {
		parts = append(parts, dimStyle.Render("updated "+format.Age(time.Since(m.snap.LastUpdated))+" ago"))
	}

	if m.scheduler != nil {
		parts = append(parts, dimStyle.Render(m.scheduler.Status()))
	}

	if m.rateLevel >= ratelimit.LevelMedium {
		parts = append(parts, warnStyle.Render("rate limit "+m.rateLevel.String()))
	}

	if m.snap.Err != nil {
		parts = append(parts, errorStyle.Render("⚠ "+m.snap.Err.Error()))
	}

	return "  " + strings.Join(parts, "  ")
}

// renderRow renders one display row; headers get section styling.
func renderRow(r row, selected bool, width int) string {
	if r.isHeader() {
		return "  " + sectionStyle.Render(r.header)
	}

	item := r.item

	marker := "  "
	if selected {
		marker = "> "
	}

	status := " "
	switch {
	case item.HasChangesRequested:
		status = changesStyle.Render("△")
	case item.ApprovalCount > 0:
		status = approvedStyle.Render("✓")
	}

	title := item.Title
	if item.IsDraft {
		title = draftStyle.Render("[draft] ") + title
	}

	age := format.Age(time.Since(item.LastActivity))

	line := fmt.Sprintf("%s%s %s  %s  %s  %s",
		marker,
		status,
		runewidth.FillRight(runewidth.Truncate(item.Repository, 24, "…"), 24),
		runewidth.FillRight(runewidth.Truncate(title, 48, "…"), 48),
		format.Initials(item.Author),
		dimStyle.Render(age),
	)

	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

// scrollWindow keeps the cursor visible within the available height.
func scrollWindow(cursor, total, height int) (start, end int) {
	if total <= height {
		return 0, total
	}
	start = cursor - height/2
	if start < 0 {
		start = 0
	}
	end = start + height
	if end > total {
		end = total
		start = end - height
	}
	return start, end
}

func renderHelp() string {
	return footerStyle.Render("  j/k move · enter open · s snooze 4h · t snooze until tomorrow · u unsnooze · r refresh · q quit")
}

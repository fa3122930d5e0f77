package output

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/spiffcs/reviewdeck/internal/filter"
	"github.com/spiffcs/reviewdeck/internal/format"
	"github.com/spiffcs/reviewdeck/internal/model"
)

// ansiRegex matches ANSI escape sequences
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// TableFormatter formats output as a terminal table grouped by category
type TableFormatter struct{}

// hyperlink creates a clickable terminal hyperlink using OSC 8
// Format: \033]8;;URL\033\\TEXT\033]8;;\033\\
func hyperlink(text, url string) string {
	// Only use hyperlinks if stdout is a terminal
	if url == "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		return text
	}
	return fmt.Sprintf("\033]8;;%s\033\\%s\033]8;;\033\\", url, text)
}

// stripAnsi removes ANSI escape sequences from a string
func stripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// displayWidth returns the visible width of a string in terminal columns
// accounting for wide characters and stripping ANSI escape sequences
func displayWidth(s string) int {
	return runewidth.StringWidth(stripAnsi(s))
}

// truncateToWidth truncates a string to fit within maxWidth display columns
func truncateToWidth(s string, maxWidth int) (string, int) {
	plain := stripAnsi(s)
	width := runewidth.StringWidth(plain)

	if width <= maxWidth {
		return s, width
	}

	cutWidth := 0
	cutIndex := 0
	for i, r := range plain {
		rw := runewidth.RuneWidth(r)
		if cutWidth+rw > maxWidth-3 {
			cutIndex = i
			break
		}
		cutWidth += rw
	}

	if cutIndex > 0 && cutIndex < len(plain) {
		return plain[:cutIndex] + "...", maxWidth
	}
	return plain[:maxWidth-3] + "...", maxWidth
}

// padRight pads a string with spaces to reach the target visible width
func padRight(s string, visibleWidth, targetWidth int) string {
	if visibleWidth >= targetWidth {
		return s
	}
	return s + strings.Repeat(" ", targetWidth-visibleWidth)
}

// Format outputs the filtered worklist grouped by category
func (f *TableFormatter) Format(result filter.Result, lastUpdated time.Time, w io.Writer) error {
	if result.VisibleCount() == 0 {
		fmt.Fprintln(w, "No pull requests found.")
		return nil
	}

	for _, state := range model.AllStates {
		group := result.Groups[state]
		if len(group) == 0 {
			continue
		}
		printSection(w, sectionTitle(state), len(group))
		for _, item := range group {
			printRow(w, item)
		}
		fmt.Fprintln(w)
	}

	if len(result.Snoozed) > 0 {
		printSection(w, "Snoozed", len(result.Snoozed))
		for _, item := range result.Snoozed {
			printRow(w, item)
		}
		fmt.Fprintln(w)
	}

	printFooter(result, lastUpdated, w)
	return nil
}

// Column widths
const (
	colRepo   = 26
	colTitle  = 44
	colAuthor = 4
	colStatus = 18
	colAge    = 5
)

func printSection(w io.Writer, title string, count int) {
	fmt.Fprintf(w, "%s (%d)\n", color.New(color.Bold).Sprint(title), count)
	fmt.Fprintln(w, strings.Repeat("-", colRepo+colTitle+colAuthor+colStatus+colAge+8))
}

func printRow(w io.Writer, item model.Item) {
	repo, _ := truncateToWidth(item.Repository, colRepo)

	title := item.Title
	if item.IsDraft {
		title = "[draft] " + title
	}
	title, visibleTitleLen := truncateToWidth(title, colTitle)
	linkedTitle := hyperlink(title, item.URL)
	linkedTitle = padRight(linkedTitle, visibleTitleLen, colTitle)

	status := formatStatus(item)
	statusText := status.text
	statusWidth := status.visibleWidth
	if statusWidth > colStatus {
		statusText, statusWidth = truncateToWidth(statusText, colStatus)
	}
	statusText = padRight(statusText, statusWidth, colStatus)

	age := format.Age(time.Since(item.LastActivity))

	fmt.Fprintf(w, "%s  %s  %-*s  %s  %s\n",
		padRight(repo, displayWidth(repo), colRepo),
		linkedTitle,
		colAuthor, format.Initials(item.Author),
		statusText,
		age,
	)
}

// statusResult holds both the display string and its visible width
type statusResult struct {
	text         string
	visibleWidth int
}

// formatStatus builds the status column from the item's review counters
func formatStatus(item model.Item) statusResult {
	var textParts []string
	var plainParts []string

	if item.HasChangesRequested {
		textParts = append(textParts, color.YellowString("△ CHANGES"))
		plainParts = append(plainParts, "△ CHANGES")
	} else if item.ApprovalCount > 0 {
		s := fmt.Sprintf("✓ %d", item.ApprovalCount)
		textParts = append(textParts, color.GreenString(s))
		plainParts = append(plainParts, s)
	}

	if item.ReviewerCount > 0 {
		s := fmt.Sprintf("%d reviewers", item.ReviewerCount)
		textParts = append(textParts, s)
		plainParts = append(plainParts, s)
	}

	if len(textParts) == 0 {
		return statusResult{"", 0}
	}

	text := strings.Join(textParts, " ")
	plain := strings.Join(plainParts, " ")
	return statusResult{text, runewidth.StringWidth(plain)}
}

func sectionTitle(state model.State) string {
	return state.DisplayName()
}

// printFooter prints the actionable/visible summary
func printFooter(result filter.Result, lastUpdated time.Time, w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("━", 60))

	if result.ActionableCount > 0 {
		fmt.Fprintf(w, "  %s %s of %d need your review\n",
			color.CyanString("○"),
			color.CyanString("%d", result.ActionableCount),
			result.VisibleCount())
	} else {
		fmt.Fprintf(w, "  %d pull requests, nothing waiting on you\n", result.VisibleCount())
	}

	if n := len(result.Snoozed); n > 0 {
		fmt.Fprintf(w, "  %d snoozed\n", n)
	}
	if result.LookbackDropped > 0 {
		fmt.Fprintf(w, "  %d merged items outside the lookback window hidden\n", result.LookbackDropped)
	}
	if !lastUpdated.IsZero() {
		fmt.Fprintf(w, "  updated %s ago\n", format.Age(time.Since(lastUpdated)))
	}
}

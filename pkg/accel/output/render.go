// Package output renders plans, launch summaries, and toggle status for
// terminal display. All rendering is write-only formatting over the wire
// structures; nothing here mutates engine state.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/report"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/state"
	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/types"
)

// RenderPlan writes the plan as an aligned table, one row per evaluated
// action. Rows arrive pre-sorted by action id from the planner.
func RenderPlan(w io.Writer, plan types.AccelerationPlan) {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render(fmt.Sprintf("Hydra Launch Plan (%s)", plan.Profile)))
	sb.WriteString("\n")

	headers := []string{"RECOMMENDED", "SUPPORTED", "ID", "CATEGORY", "RISK", "ROOT"}
	rows := make([][]string, 0, len(plan.Recommendations))
	for _, rec := range plan.Recommendations {
		rows = append(rows, []string{
			yesNo(rec.Recommended),
			yesNo(rec.Supported),
			rec.ActionID,
			rec.Category,
			string(rec.Risk),
			yesNo(rec.RequiresRoot),
		})
	}

	widths := columnWidths(headers, rows)

	cells := make([]string, len(headers))
	for i, header := range headers {
		cells[i] = HeaderStyle.Render(padRight(header, widths[i]))
	}
	sb.WriteString("  " + strings.Join(cells, "  ") + "\n")

	for _, row := range rows {
		for i, cell := range row {
			padded := padRight(cell, widths[i])
			if cell == "no" {
				cells[i] = MutedStyle.Render(padded)
			} else {
				cells[i] = ValueStyle.Render(padded)
			}
		}
		sb.WriteString("  " + strings.Join(cells, "  ") + "\n")
	}

	fmt.Fprint(w, sb.String())
}

// RenderSummary writes the one-line launch summary followed by a per-action
// status line.
func RenderSummary(w io.Writer, rep report.Report) {
	summary := fmt.Sprintf("Launch Summary: Applied=%d Skipped=%d Unsupported=%d",
		rep.Summary.Applied, rep.Summary.Skipped, rep.Summary.Unsupported)
	fmt.Fprintln(w, TitleStyle.Render(summary))

	for _, result := range rep.Results {
		status := WarningStyle.Render("SKIPPED")
		if result.Applied {
			status = SuccessStyle.Render("APPLIED")
		}
		suffix := ""
		if result.SkippedReason != nil && *result.SkippedReason != "" {
			suffix = " " + MutedStyle.Render("("+*result.SkippedReason+")")
		}
		fmt.Fprintf(w, "- %s: %s%s\n", result.ActionID, status, suffix)
	}
}

// RenderToggleStatus writes the acceleration session state as a key/value
// table; verbose adds the plain per-change and per-failure lines.
func RenderToggleStatus(w io.Writer, payload state.Payload, verbose bool) {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render("Continuum Accelerate Status"))
	sb.WriteString("\n")

	active := MutedStyle.Render("false")
	if payload.Active {
		active = SuccessStyle.Render("true")
	}

	writeField(&sb, "Active", active)
	writeField(&sb, "Platform", ValueStyle.Render(payload.Platform))
	writeField(&sb, "Timestamp", ValueStyle.Render(payload.Timestamp))
	writeField(&sb, "Changes", ValueStyle.Render(strconv.Itoa(len(payload.ChangesApplied))))

	failures := ValueStyle.Render("0")
	if len(payload.Failures) > 0 {
		failures = ErrorStyle.Render(strconv.Itoa(len(payload.Failures)))
	}
	writeField(&sb, "Failures", failures)

	if payload.Message != "" {
		writeField(&sb, "Message", WarningStyle.Render(payload.Message))
	}

	if verbose {
		for _, line := range HumanLines(payload) {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	fmt.Fprint(w, sb.String())
}

// HumanLines flattens the session payload into plain text lines, the
// machine-grep-friendly fallback shape.
func HumanLines(payload state.Payload) []string {
	lines := []string{
		fmt.Sprintf("active=%t", payload.Active),
		fmt.Sprintf("platform=%s", payload.Platform),
		fmt.Sprintf("timestamp=%s", payload.Timestamp),
		fmt.Sprintf("changes_applied=%d", len(payload.ChangesApplied)),
	}

	for _, change := range payload.ChangesApplied {
		line := fmt.Sprintf("- %s: %s", change.Name, change.Result)
		if change.Message != "" {
			line += " - " + change.Message
		}
		lines = append(lines, line)
	}

	if len(payload.Failures) > 0 {
		lines = append(lines, fmt.Sprintf("failures=%d", len(payload.Failures)))
		for _, failure := range payload.Failures {
			lines = append(lines, "- failure: "+failure)
		}
	}

	return lines
}

func writeField(sb *strings.Builder, label, value string) {
	sb.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(label+":"), value))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// columnWidths returns the max content width per column across headers and
// rows, so cells can be padded before styling is applied.
func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

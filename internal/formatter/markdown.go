// Package formatter renders validation reports as Markdown.
package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"firestats/internal/integrity"
)

// RenderReport renders the validation report with display-width aligned tables.
func RenderReport(r *integrity.Report) string {
	var sb strings.Builder

	status := "PUBLISHABLE"
	if r.HasBlockingViolations() {
		status = "BLOCKED"
	}

	sb.WriteString("# Validation Report\n\n")
	fmt.Fprintf(&sb, "- Run: %s\n", r.RunID)
	fmt.Fprintf(&sb, "- Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "- Status: %s\n", status)
	fmt.Fprintf(&sb, "- Violations: %d\n", r.TotalViolations())
	fmt.Fprintf(&sb, "- Row defects: %d\n", r.TotalDefects())

	sb.WriteString("\n## Referential integrity\n\n")

	checks := [][]string{{"Fact table", "Key", "Rows", "Missing", "Orphans", "Whitelisted", "Violations", "Orphan samples"}}
	for _, c := range r.Checks {
		checks = append(checks, []string{
			c.FactTable,
			c.KeyColumn,
			strconv.Itoa(c.Rows),
			strconv.Itoa(c.Missing),
			strconv.Itoa(c.Orphans),
			yesNo(c.Whitelisted),
			strconv.Itoa(c.Violations),
			strings.Join(c.OrphanSamples, ", "),
		})
	}

	writeTable(&sb, checks)

	if len(r.Defects) > 0 {
		sb.WriteString("\n## Row defects\n\n")

		defects := [][]string{{"Dataset", "Kind", "Count"}}
		for _, d := range r.Defects {
			defects = append(defects, []string{d.Dataset, string(d.Kind), strconv.Itoa(d.Count)})
		}

		writeTable(&sb, defects)
	}

	if len(r.Exceptions) > 0 {
		sb.WriteString("\n## Accepted gaps\n\n")

		exceptions := [][]string{{"Fact table", "Key", "Reason"}}
		for _, e := range r.Exceptions {
			exceptions = append(exceptions, []string{e.FactTable, e.KeyColumn, e.Reason})
		}

		writeTable(&sb, exceptions)
	}

	return AlignTables(sb.String())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

// writeTable writes a header row, a separator and the body rows unaligned.
func writeTable(sb *strings.Builder, rows [][]string) {
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = escapeCell(c)
		}

		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")

		if i == 0 {
			sb.WriteString(strings.Repeat("| --- ", len(row)) + "|\n")
		}
	}
}

func escapeCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// AlignTables pads every Markdown table in content so its columns line up
// by display width. Non-table lines are left untouched.
func AlignTables(content string) string {
	lines := strings.Split(content, "\n")

	var out []string

	var table []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			table = append(table, trimmed)
			continue
		}

		if len(table) > 0 {
			out = append(out, alignTable(table)...)
			table = nil
		}

		out = append(out, line)
	}

	if len(table) > 0 {
		out = append(out, alignTable(table)...)
	}

	return strings.Join(out, "\n")
}

// splitRow splits a table row on unescaped pipes.
func splitRow(row string) []string {
	row = strings.TrimSuffix(strings.TrimPrefix(row, "|"), "|")

	var cells []string

	var cell strings.Builder

	escaped := false

	for _, r := range row {
		switch {
		case escaped:
			cell.WriteRune(r)
			escaped = false
		case r == '\\':
			cell.WriteRune(r)
			escaped = true
		case r == '|':
			cells = append(cells, strings.TrimSpace(cell.String()))
			cell.Reset()
		default:
			cell.WriteRune(r)
		}
	}

	return append(cells, strings.TrimSpace(cell.String()))
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}

	return true
}

func alignTable(rows []string) []string {
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, len(rows))
	cols := 0

	for i, row := range rows {
		table[i] = splitRow(row)
		cols = max(cols, len(table[i]))
	}

	sep := -1
	if isSeparator(table[1]) {
		sep = 1
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = 3
	}

	for i, row := range table {
		if i == sep {
			continue
		}

		for j, c := range row {
			widths[j] = max(widths[j], runewidth.StringWidth(c))
		}
	}

	out := make([]string, 0, len(table))

	for i, row := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for j := 0; j < cols; j++ {
			sb.WriteString(" ")

			if i == sep {
				sb.WriteString(strings.Repeat("-", widths[j]))
			} else {
				content := ""
				if j < len(row) {
					content = row[j]
				}

				sb.WriteString(runewidth.FillRight(content, widths[j]))
			}

			sb.WriteString(" |")
		}

		out = append(out, sb.String())
	}

	return out
}

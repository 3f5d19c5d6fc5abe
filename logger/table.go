package logger

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Table renders a box-drawn table. Widths are measured in runes so that
// cells like "1.2 MB → 0.4 MB" line up.
type Table struct {
	headers     []string
	rows        [][]string
	columnWidth []int
	out         io.Writer
}

func NewTable(headers []string, out io.Writer) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}

	return &Table{
		headers:     headers,
		columnWidth: widths,
		out:         out,
	}
}

func (t *Table) AddRow(cells ...string) {
	if len(cells) > len(t.headers) {
		cells = cells[:len(t.headers)]
	} else if len(cells) < len(t.headers) {
		padded := make([]string, len(t.headers))
		copy(padded, cells)
		cells = padded
	}

	for i, cell := range cells {
		if n := utf8.RuneCountInString(cell); n > t.columnWidth[i] {
			t.columnWidth[i] = n
		}
	}

	t.rows = append(t.rows, cells)
}

func (t *Table) border(left, mid, right string) string {
	var sb strings.Builder
	sb.WriteString(left)
	for i, width := range t.columnWidth {
		sb.WriteString(strings.Repeat("─", width+2))
		if i < len(t.columnWidth)-1 {
			sb.WriteString(mid)
		}
	}
	sb.WriteString(right)
	return sb.String()
}

func (t *Table) row(cells []string) string {
	var sb strings.Builder
	sb.WriteString("│")
	for i, cell := range cells {
		pad := t.columnWidth[i] - utf8.RuneCountInString(cell)
		sb.WriteString(" ")
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", pad))
		sb.WriteString(" │")
	}
	return sb.String()
}

func (t *Table) String() string {
	lines := []string{
		t.border("┌", "┬", "┐"),
		t.row(t.headers),
		t.border("├", "┼", "┤"),
	}
	for _, r := range t.rows {
		lines = append(lines, t.row(r))
	}
	lines = append(lines, t.border("└", "┴", "┘"))
	return strings.Join(lines, "\n")
}

func (t *Table) Print() {
	if t.out == nil {
		return
	}
	fmt.Fprintln(t.out, t.String())
}

package report

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps a --format flag value to a Mode. Anything but "markdown"
// renders as ASCII.
func ParseMode(s string) Mode {
	if s == "markdown" || s == "md" {
		return Markdown
	}
	return ASCII
}

type tableBuilder struct {
	writer  table.Writer
	mode    Mode
	columns []table.ColumnConfig
}

func newTable(m Mode) *tableBuilder {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &tableBuilder{writer: w, mode: m}
}

func (b *tableBuilder) header(cols ...any) {
	b.writer.AppendHeader(table.Row(cols))
}

func (b *tableBuilder) row(vals ...any) {
	b.writer.AppendRow(table.Row(vals))
}

func (b *tableBuilder) footer(vals ...any) {
	b.writer.AppendFooter(table.Row(vals))
}

// column returns the config of a 1-based column number, adding it if needed.
func (b *tableBuilder) column(number int) *table.ColumnConfig {
	for i := range b.columns {
		if b.columns[i].Number == number {
			return &b.columns[i]
		}
	}
	b.columns = append(b.columns, table.ColumnConfig{Number: number})
	return &b.columns[len(b.columns)-1]
}

// maxWidth wraps a column beyond width characters.
func (b *tableBuilder) maxWidth(column, width int) {
	b.column(column).WidthMax = width
}

func (b *tableBuilder) alignRight(columns ...int) {
	for _, c := range columns {
		b.column(c).Align = text.AlignRight
	}
}

func (b *tableBuilder) String() string {
	if len(b.columns) > 0 {
		b.writer.SetColumnConfigs(b.columns)
	}
	if b.mode == Markdown {
		return b.writer.RenderMarkdown()
	}
	return b.writer.Render()
}

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JonMunkholm/gridimport/internal/core"
	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// render writes t in the requested format. footer, if set, follows the
// plain table only.
func render(w io.Writer, t table.Writer, format, footer string) {
	switch format {
	case "csv":
		t.RenderCSV()
	case "markdown":
		t.RenderMarkdown()
	default:
		t.Render()
		if footer != "" {
			fmt.Fprintln(w, footer)
		}
	}
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderGrid(w io.Writer, g *grid.Grid, format string) error {
	if format == "json" {
		return renderJSON(w, g.Records())
	}

	t := newTable(w)
	header := make(table.Row, g.ColumnCount())
	for i, c := range g.Columns() {
		header[i] = c.Name
	}
	t.AppendHeader(header)

	for _, r := range g.Rows() {
		row := make(table.Row, len(r.Cells))
		for i, cell := range r.Cells {
			row[i] = cell.Format(g.Column(i))
		}
		t.AppendRow(row)
	}

	render(w, t, format, fmt.Sprintf("(%d rows)", g.RowCount()))
	return nil
}

func renderRunSummary(w io.Writer, p *core.Profile, res *core.RunResult, format string) error {
	if format == "json" {
		return renderJSON(w, res)
	}

	target := p.Sink.Table
	if target == "" {
		target = "(query)"
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Profile", "Target", "Inserted", "Truncated", "Duration"})
	t.AppendRow(table.Row{p.Name, target, res.Database.Inserted, res.Database.Truncated, res.Duration.Round(time.Millisecond).String()})
	render(w, t, format, "")
	return nil
}

// columnRow is one line of a schema listing.
type columnRow struct {
	Name     string `json:"name"`
	Depth    int    `json:"depth"`
	Type     string `json:"type"`
	Binding  string `json:"binding"`
	BindName string `json:"bindName"`
	Nullable bool   `json:"nullable"`
	Source   string `json:"source"`
	Position int    `json:"position,omitempty"`
	Size     int    `json:"size,omitempty"`
}

func schemaRows(s schema.Schema) []columnRow {
	var out []columnRow
	s.Walk(func(c schema.Column, depth int) {
		row := columnRow{
			Name:     c.Name,
			Depth:    depth,
			Type:     c.Type.String(),
			Binding:  c.BindingType().String(),
			BindName: c.ParameterName(),
			Nullable: c.AllowNull,
			Source:   columnSource(c),
		}
		if c.HasGeometry() {
			row.Position, row.Size = c.Position, c.Size
		}
		out = append(out, row)
	})
	return out
}

// columnSource describes where a column's value comes from.
func columnSource(c schema.Column) string {
	switch {
	case c.Value.IsSet():
		if src := c.Value.Source(); src != "" {
			return fmt.Sprintf("= %q", src)
		}
		return "= (computed)"
	case c.IsMapped():
		return "map " + c.ColumnMap
	case len(c.Appended) > 0:
		return "appended"
	}
	return "header"
}

func renderSchema(w io.Writer, s schema.Schema, format string) error {
	rows := schemaRows(s)
	if format == "json" {
		return renderJSON(w, rows)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Column", "Type", "Binding", "Bind Name", "Null", "Source", "Geometry"})
	for i, r := range rows {
		geometry := ""
		if r.Size > 0 {
			geometry = fmt.Sprintf("%d+%d", r.Position, r.Size)
		}
		t.AppendRow(table.Row{i + 1, strings.Repeat("  ", r.Depth) + r.Name, r.Type, r.Binding, r.BindName, r.Nullable, r.Source, geometry})
	}
	render(w, t, format, fmt.Sprintf("(%d columns, %d declared)", len(rows), len(s)))
	return nil
}

type profileRow struct {
	Name        string          `json:"name"`
	Source      core.SourceKind `json:"source"`
	Sink        core.SinkKind   `json:"sink"`
	Columns     int             `json:"columns"`
	File        string          `json:"file"`
	Description string          `json:"description,omitempty"`
}

func renderProfiles(w io.Writer, profiles []*core.Profile, format string) error {
	rows := make([]profileRow, len(profiles))
	for i, p := range profiles {
		rows[i] = profileRow{
			Name:        p.Name,
			Source:      p.Source.Kind,
			Sink:        p.Sink.Kind,
			Columns:     len(p.Schema().Expand()),
			File:        p.File(),
			Description: p.Description,
		}
	}
	if format == "json" {
		return renderJSON(w, rows)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Source", "Sink", "Columns", "Description"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Name, r.Source, r.Sink, r.Columns, r.Description})
	}
	render(w, t, format, fmt.Sprintf("(%d profiles)", len(rows)))
	return nil
}

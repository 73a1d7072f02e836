package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/viewer"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/reflow/truncate"
)

type outputFormat string

const (
	formatTable    outputFormat = "table"
	formatJSON     outputFormat = "json"
	formatCSV      outputFormat = "csv"
	formatMarkdown outputFormat = "markdown"
)

// maxCellWidth bounds table cells; csv, markdown and json are never truncated.
const maxCellWidth = 48

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatTable, formatJSON, formatCSV, formatMarkdown:
		return f, nil
	case "md":
		return formatMarkdown, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json, csv or markdown)", s)
}

// renderer writes tabular results in the selected format.
type renderer struct {
	w      io.Writer
	format outputFormat
}

func (r renderer) cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r.format == formatTable {
		return truncate.StringWithTail(s, maxCellWidth, "…")
	}
	return s
}

// table renders headers and rows. JSON output is produced by the caller
// because it should carry typed values.
func (r renderer) table(headers []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		out := make(table.Row, len(row))
		for i, c := range row {
			out[i] = r.cell(c)
		}
		t.AppendRow(out)
	}

	switch r.format {
	case formatCSV:
		t.RenderCSV()
	case formatMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
}

// keyValues renders a two-column property table.
func (r renderer) keyValues(pairs [][2]string) {
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}
	r.table([]string{"Field", "Value"}, rows)
}

func (r renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// records renders rows under cols. URLs are printed in full since a terminal
// cannot open the grid's link labels.
func (r renderer) records(cols []viewer.Column, rows []domain.Record, f viewer.Formatter) error {
	if r.format == formatJSON {
		if rows == nil {
			rows = []domain.Record{}
		}
		return r.json(rows)
	}
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		line := make([]string, len(cols))
		for j, c := range cols {
			v, ok := row.Lookup(c.Field)
			if !ok {
				continue
			}
			line[j] = f.Text(v)
		}
		out[i] = line
	}
	r.table(headers, out)
	return nil
}

// recordPairs flattens one record into property rows in field order.
func recordPairs(rec domain.Record, f viewer.Formatter) [][2]string {
	pairs := make([][2]string, 0, len(rec))
	for _, fld := range rec {
		pairs = append(pairs, [2]string{fld.Name, f.Text(fld.Value)})
	}
	return pairs
}

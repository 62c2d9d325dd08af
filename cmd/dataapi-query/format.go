package main

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tomyedwab/rdsdataapi/dbapi"
)

// Formatter renders a result set.
type Formatter interface {
	Name() string
	Format(header []string, rows []dbapi.Row, w io.Writer) error
}

var formatters = map[string]Formatter{
	"table": &Table{},
	"csv":   &CSV{},
	"json":  &JSON{},
}

// formatValue renders a single value for text output.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return `\x` + hex.EncodeToString(val)
	default:
		return fmt.Sprint(val)
	}
}

type Table struct{}

func (tf *Table) Name() string {
	return "table"
}

func (tf *Table) Format(header []string, rows []dbapi.Row, w io.Writer) error {
	tableHeaders := []any{""}
	for _, k := range header {
		tableHeaders = append(tableHeaders, k)
	}

	var tableRows []table.Row
	for i, row := range rows {
		indexedRow := []any{i + 1}
		for _, v := range row {
			indexedRow = append(indexedRow, formatValue(v))
		}
		tableRows = append(tableRows, table.Row(indexedRow))
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row(tableHeaders))
	t.AppendRows(tableRows)
	t.SetStyle(table.StyleLight)
	t.Style().Format = table.FormatOptions{
		Footer: text.FormatDefault,
		Header: text.FormatDefault,
		Row:    text.FormatDefault,
	}
	t.Style().Options.DrawBorder = false
	t.SuppressTrailingSpaces()

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

type CSV struct{}

func (cf *CSV) Name() string {
	return "csv"
}

func (cf *CSV) Format(header []string, rows []dbapi.Row, w io.Writer) error {
	data := [][]string{header}
	for _, row := range rows {
		csvRow := make([]string, 0, len(row))
		for _, v := range row {
			csvRow = append(csvRow, formatValue(v))
		}
		data = append(data, csvRow)
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(data); err != nil {
		return err
	}
	return cw.Error()
}

// JSON writes one object per row keyed by column name. Blobs are base64
// encoded.
type JSON struct{}

func (jf *JSON) Name() string {
	return "json"
}

func (jf *JSON) Format(header []string, rows []dbapi.Row, w io.Writer) error {
	objects := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(row) {
				obj[name] = row[i]
			}
		}
		objects = append(objects, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(objects)
}

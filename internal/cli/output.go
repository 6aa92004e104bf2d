package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatType selects how command results are printed
type FormatType string

const (
	FormatTable FormatType = "table"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// Table is the tabular rendering of a result
type Table struct {
	Headers []string
	Rows    [][]string
}

// Tabular results know how to render themselves as a table
type Tabular interface {
	Table() Table
}

// Printer writes results in one format
type Printer struct {
	out    io.Writer
	format FormatType
}

func NewPrinter(out io.Writer, format string) (*Printer, error) {
	switch f := FormatType(strings.ToLower(format)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return &Printer{out: out, format: f}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (table, json, yaml)", format)
	}
}

// Print renders v. Values that are not Tabular print as YAML in table mode.
func (p *Printer) Print(v any) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		return p.yaml(v)
	}
	t, ok := v.(Tabular)
	if !ok {
		return p.yaml(v)
	}
	return p.table(t.Table())
}

func (p *Printer) yaml(v any) error {
	// round trip through JSON so json tags decide the field names
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to convert output: %w", err)
	}
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return enc.Close()
}

func (p *Printer) table(t Table) error {
	if len(t.Rows) == 0 {
		_, err := fmt.Fprintln(p.out, "No data found")
		return err
	}
	w := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.Headers, "\t"))
	seps := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		seps[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(seps, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
)

// Output flags shared by read commands.
var (
	flagJSON bool
	flagJQ   string
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().StringVar(&flagJQ, "jq", "", "filter JSON output with a jq expression (implies --json)")
}

func wantJSON() bool {
	return flagJSON || strings.TrimSpace(flagJQ) != ""
}

// printJSON writes v as indented JSON, or the results of the --jq
// expression applied to it. String results are printed raw.
func printJSON(w io.Writer, v any) error {
	expr := strings.TrimSpace(flagJQ)
	if expr == "" {
		return encodeJSON(w, v)
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}

	// gojq works on plain maps and slices.
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		value, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := value.(error); isErr {
			return fmt.Errorf("jq: %w", err)
		}
		if s, isString := value.(string); isString {
			fmt.Fprintln(w, s)
			continue
		}
		if err := encodeJSON(w, value); err != nil {
			return err
		}
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes aligned columns; the first row is the header.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, header ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
	t.row(header...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.tw, strings.Join(cols, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

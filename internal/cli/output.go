package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// JSON writes v as indented JSON when the json format is selected and reports
// whether it did.
func (f *OutputFormatter) JSON(v interface{}) (bool, error) {
	if f.Format != "json" {
		return false, nil
	}
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

// Table writes tab separated rows aligned in columns.
func (f *OutputFormatter) Table(header []interface{}, rows [][]interface{}) error {
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	for _, row := range append([][]interface{}{header}, rows...) {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// Printf writes a line of text output.
func (f *OutputFormatter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(f.Writer, format+"\n", args...)
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Format represents the output format type
type Format string

const (
	// FormatText is the default human-readable text format
	FormatText Format = "text"
	// FormatJSON is the JSON output format
	FormatJSON Format = "json"
)

// Texter is implemented by results with their own text rendering
type Texter interface {
	Text() string
}

// Formatter writes results in the configured format
type Formatter struct {
	format Format
	writer io.Writer
}

// New creates a new Formatter writing to stdout
func New(format Format) *Formatter {
	return &Formatter{
		format: format,
		writer: os.Stdout,
	}
}

// SetWriter sets a custom writer for output (useful for testing)
func (f *Formatter) SetWriter(w io.Writer) {
	f.writer = w
}

// Output writes data in the configured format
func (f *Formatter) Output(data interface{}) error {
	switch f.format {
	case FormatJSON:
		encoder := json.NewEncoder(f.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case FormatText:
		if t, ok := data.(Texter); ok {
			_, err := fmt.Fprintln(f.writer, t.Text())
			return err
		}
		_, err := fmt.Fprintf(f.writer, "%v\n", data)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

// AddFormatFlag adds a --output flag to a cobra command
func AddFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", string(FormatText), "Output format (text|json)")
}

// FromCmd builds a Formatter from the --output flag of cmd, writing to the
// command's output stream.
func FromCmd(cmd *cobra.Command) (*Formatter, error) {
	formatStr, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	format := Format(formatStr)
	switch format {
	case FormatText, FormatJSON:
	default:
		return nil, fmt.Errorf("invalid output format: %s (must be 'text' or 'json')", formatStr)
	}

	f := New(format)
	f.SetWriter(cmd.OutOrStdout())
	return f, nil
}

// Package output provides output formatting for sevault-cli.
package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats data as indented JSON for scripting.
type JSONFormatter struct{}

// Format writes data as indented JSON.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

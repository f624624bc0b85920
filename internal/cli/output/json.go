package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes data as two-space indented JSON. HTML characters
// are left unescaped so URLs and selectors print as typed.
type JSONFormatter struct{}

func (JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

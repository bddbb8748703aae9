// Package format renders CLI payloads.
package format

import (
	"encoding/json"
	"io"
)

// Formatter renders one payload per call.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter emits newline-terminated JSON documents. A non-empty
// Indent switches to pretty-printed output.
type JSONFormatter struct {
	Indent string
}

func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	return enc.Encode(payload)
}

package formats

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-frame/frame"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formatter writes a frame to w.
type Formatter interface {
	Write(ctx context.Context, w io.Writer, f *frame.Frame) error
}

// ReadFunc decodes a frame from r.
type ReadFunc func(r io.Reader) (*frame.Frame, error)

// New returns the writer for format. fields restricts and orders the written
// columns, bar is incremented once per row and may be nil.
func New(format string, fields []string, bar *pb.ProgressBar) (Formatter, error) {
	switch format {
	case FormatCSV, "":
		return CSV{Fields: fields, ProgressBar: bar}, nil
	case FormatJSON:
		return JSON{Fields: fields, ProgressBar: bar}, nil
	case FormatYAML:
		return YAML{Fields: fields, ProgressBar: bar}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

func Reader(format string) (ReadFunc, error) {
	switch format {
	case FormatCSV, "":
		return ReadCSV, nil
	case FormatJSON:
		return ReadJSON, nil
	case FormatYAML:
		return ReadYAML, nil
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

func columns(f *frame.Frame, fields []string) []string {
	if len(fields) > 0 {
		return fields
	}
	return f.Columns()
}

func increment(bar *pb.ProgressBar) {
	if bar != nil {
		bar.Increment()
	}
}

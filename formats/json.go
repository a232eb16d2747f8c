package formats

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-frame/frame"
)

// JSON writes one JSON object per line.
type JSON struct {
	Fields      []string
	ProgressBar *pb.ProgressBar
}

func (j JSON) Write(ctx context.Context, w io.Writer, f *frame.Frame) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for i := 0; i < f.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(selectRecord(f, i, j.Fields)); err != nil {
			return fmt.Errorf("writing JSON row %d: %w", i, err)
		}
		increment(j.ProgressBar)
	}
	return bw.Flush()
}

func selectRecord(f *frame.Frame, i int, fields []string) *orderedmap.OrderedMap[string, any] {
	if len(fields) == 0 {
		return f.Record(i)
	}
	rec := orderedmap.New[string, any]()
	for _, field := range fields {
		if v := f.Get(i, field); v != nil {
			rec.Set(field, v)
		}
	}
	return rec
}

// ReadJSON reads either newline delimited JSON objects or a single JSON array
// of objects. Nested objects become dotted columns.
func ReadJSON(r io.Reader) (*frame.Frame, error) {
	br := bufio.NewReader(r)
	f := frame.Empty()

	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var docs []json.RawMessage
		if err := dec.Decode(&docs); err != nil {
			return nil, fmt.Errorf("reading JSON array: %w", err)
		}
		for i, doc := range docs {
			if err := appendJSON(f, doc); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
		}
		return f, nil
	}

	for n := 0; ; n++ {
		var doc json.RawMessage
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading JSON line %d: %w", n+1, err)
		}
		if err := appendJSON(f, doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", n, err)
		}
	}
}

func appendJSON(f *frame.Frame, doc json.RawMessage) error {
	rec, err := frame.DecodeRecord(doc)
	if err != nil {
		return err
	}
	f.AppendRecord(rec)
	return nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

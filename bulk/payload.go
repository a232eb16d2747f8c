package bulk

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pteich/elastic-frame/elastic"
	"github.com/pteich/elastic-frame/frame"
)

type actionMeta struct {
	Index string `json:"_index"`
	Type  string `json:"_type,omitempty"`
	ID    any    `json:"_id,omitempty"`
}

// payload is a staged NDJSON body, either in memory or in a temporary file.
type payload struct {
	buf  *bytes.Buffer
	file *os.File
	w    *bufio.Writer
	enc  *json.Encoder
}

func newPayload(dir string) (*payload, error) {
	if dir == "" {
		buf := &bytes.Buffer{}
		return &payload{buf: buf, enc: newEncoder(buf)}, nil
	}

	file, err := os.CreateTemp(dir, "elastic-frame-bulk-*.ndjson")
	if err != nil {
		return nil, fmt.Errorf("staging bulk payload: %w", err)
	}
	w := bufio.NewWriter(file)
	return &payload{file: file, w: w, enc: newEncoder(w)}, nil
}

func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// line writes v followed by a newline.
func (p *payload) line(v any) error {
	return p.enc.Encode(v)
}

func (p *payload) Write(b []byte) (int, error) {
	if p.file == nil {
		return p.buf.Write(b)
	}
	return p.w.Write(b)
}

func (p *payload) reader() (io.Reader, int64, error) {
	if p.file == nil {
		return bytes.NewReader(p.buf.Bytes()), int64(p.buf.Len()), nil
	}
	if err := p.w.Flush(); err != nil {
		return nil, 0, err
	}
	size, err := p.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, err
	}
	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}
	return io.NopCloser(p.file), size, nil
}

func (p *payload) remove() error {
	if p.file == nil {
		p.buf.Reset()
		return nil
	}
	return errors.Join(p.file.Close(), os.Remove(p.file.Name()))
}

// checkIDs rejects blank string ids, which the cluster refuses for the whole
// bulk request. Missing ids are left to the cluster.
func checkIDs(f *frame.Frame) error {
	if !f.HasColumn(idColumn) {
		return nil
	}
	for i := 0; i < f.Len(); i++ {
		if id, ok := f.Get(i, idColumn).(string); ok && strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: row %d has a blank id", elastic.ErrInvalidArgument, i)
		}
	}
	return nil
}

func writeIndexActions(p *payload, loc *elastic.Locator, f *frame.Frame) error {
	hasID := f.HasColumn(idColumn)
	for i := 0; i < f.Len(); i++ {
		meta := actionMeta{Index: loc.Index(), Type: loc.DocType()}
		if hasID {
			meta.ID = f.Get(i, idColumn)
		}
		if err := p.line(map[string]actionMeta{"index": meta}); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := p.line(f.Record(i)); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func deleteAction(loc *elastic.Locator, id string) ([]byte, error) {
	b, err := json.Marshal(map[string]actionMeta{"delete": {Index: loc.Index(), Type: loc.DocType(), ID: id}})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

package formats

import (
	"context"
	"errors"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/cheggaaa/pb.v2"
	"gopkg.in/yaml.v3"

	"github.com/pteich/elastic-frame/frame"
)

// YAML writes the frame as a sequence of mappings in column order.
type YAML struct {
	Fields      []string
	ProgressBar *pb.ProgressBar
}

func (y YAML) Write(ctx context.Context, w io.Writer, f *frame.Frame) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}

	for i := 0; i < f.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		row := &yaml.Node{Kind: yaml.MappingNode}
		rec := selectRecord(f, i, y.Fields)
		for pair := rec.Oldest(); pair != nil; pair = pair.Next() {
			value := &yaml.Node{}
			if err := value.Encode(pair.Value); err != nil {
				return fmt.Errorf("writing YAML row %d: %w", i, err)
			}
			row.Content = append(row.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: pair.Key}, value)
		}
		doc.Content = append(doc.Content, row)
		increment(y.ProgressBar)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing YAML: %w", err)
	}
	return enc.Close()
}

// ReadYAML reads a sequence of mappings. Key order of the first appearance
// defines the column order.
func ReadYAML(r io.Reader) (*frame.Frame, error) {
	f := frame.Empty()

	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		return nil, fmt.Errorf("reading YAML: %w", err)
	}

	seq := &doc
	if seq.Kind == yaml.DocumentNode && len(seq.Content) > 0 {
		seq = seq.Content[0]
	}
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("reading YAML: expected a sequence of mappings, line %d", seq.Line)
	}

	for i, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("reading YAML: item %d is not a mapping, line %d", i, item.Line)
		}
		rec := orderedmap.New[string, any]()
		for k := 0; k+1 < len(item.Content); k += 2 {
			var v any
			if err := item.Content[k+1].Decode(&v); err != nil {
				return nil, fmt.Errorf("reading YAML item %d: %w", i, err)
			}
			rec.Set(item.Content[k].Value, normalize(v))
		}
		f.AppendRecord(frame.Flatten(rec))
	}
	return f, nil
}

// normalize converts integers to int64 the way the CSV reader types them.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
		return x
	}
	return v
}

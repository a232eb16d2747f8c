package search

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pteich/elastic-frame/frame"
)

// aggregationsFrame turns the aggregations object of a response into rows:
// one per bucket for bucket aggregations, one per aggregation otherwise. With
// more than one aggregation an "aggregation" column names the source.
func aggregationsFrame(raw json.RawMessage) (*frame.Frame, error) {
	out := frame.Empty()
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}

	aggs := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, aggs); err != nil {
		return nil, fmt.Errorf("decoding aggregations: %w", err)
	}

	named := aggs.Len() > 1
	for pair := aggs.Oldest(); pair != nil; pair = pair.Next() {
		rows, err := aggregationRows(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("aggregation %q: %w", pair.Key, err)
		}
		for _, rec := range rows {
			if named {
				rec = prepend(rec, "aggregation", pair.Key)
			}
			out.AppendRecord(rec)
		}
	}
	return out, nil
}

func aggregationRows(raw json.RawMessage) ([]*orderedmap.OrderedMap[string, any], error) {
	var body struct {
		Buckets json.RawMessage `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	buckets := bytes.TrimSpace(body.Buckets)

	switch {
	case len(buckets) > 0 && buckets[0] == '[':
		var list []json.RawMessage
		if err := json.Unmarshal(buckets, &list); err != nil {
			return nil, err
		}
		rows := make([]*orderedmap.OrderedMap[string, any], 0, len(list))
		for _, b := range list {
			rec, err := frame.DecodeRecord(b)
			if err != nil {
				return nil, err
			}
			rows = append(rows, rec)
		}
		return rows, nil

	case len(buckets) > 0 && buckets[0] == '{':
		keyed := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(buckets, keyed); err != nil {
			return nil, err
		}
		rows := make([]*orderedmap.OrderedMap[string, any], 0, keyed.Len())
		for pair := keyed.Oldest(); pair != nil; pair = pair.Next() {
			rec, err := frame.DecodeRecord(pair.Value)
			if err != nil {
				return nil, err
			}
			rows = append(rows, prepend(rec, "key", pair.Key))
		}
		return rows, nil
	}

	rec, err := frame.DecodeRecord(raw)
	if err != nil {
		return nil, err
	}
	return []*orderedmap.OrderedMap[string, any]{rec}, nil
}

// prepend returns rec with key set first. An existing key of the same name is
// replaced.
func prepend(rec *orderedmap.OrderedMap[string, any], key string, value any) *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any]()
	out.Set(key, value)
	for pair := rec.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == key {
			continue
		}
		out.Set(pair.Key, pair.Value)
	}
	return out
}

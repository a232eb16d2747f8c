package frame

import (
	"fmt"
	"reflect"
)

const (
	columnOverhead = 16
	rowOverhead    = 24
	scalarSize     = 8
	stringOverhead = 16
)

// EstimateSize approximates the in-memory footprint of f in bytes.
func (f *Frame) EstimateSize() int64 {
	var size int64
	for _, c := range f.columns {
		size += int64(len(c) + columnOverhead)
	}
	for _, row := range f.rows {
		size += rowOverhead
		for _, v := range row {
			size += valueSize(v)
		}
	}
	return size
}

func valueSize(v any) int64 {
	switch x := v.(type) {
	case nil:
		return scalarSize
	case string:
		return int64(stringOverhead + len(x))
	case []byte:
		return int64(stringOverhead + len(x))
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return scalarSize
	case []any:
		size := int64(rowOverhead)
		for _, e := range x {
			size += valueSize(e)
		}
		return size
	case map[string]any:
		size := int64(rowOverhead)
		for k, e := range x {
			size += int64(stringOverhead+len(k)) + valueSize(e)
		}
		return size
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		size := int64(rowOverhead)
		for i := 0; i < rv.Len(); i++ {
			size += valueSize(rv.Index(i).Interface())
		}
		return size
	}
	return int64(stringOverhead + len(fmt.Sprint(v)))
}

// ChunkCount is ceil(EstimateSize / maxBytes), at least 1 and at most Len.
func (f *Frame) ChunkCount(maxBytes int64) int {
	if len(f.rows) == 0 {
		return 0
	}
	if maxBytes <= 0 {
		return 1
	}
	k := int((f.EstimateSize() + maxBytes - 1) / maxBytes)
	if k < 1 {
		k = 1
	}
	if k > len(f.rows) {
		k = len(f.rows)
	}
	return k
}

// Chunks splits the rows of f into ChunkCount(maxBytes) contiguous parts of
// near equal length. Earlier chunks take the remainder rows.
func (f *Frame) Chunks(maxBytes int64) []*Frame {
	k := f.ChunkCount(maxBytes)
	chunks := make([]*Frame, 0, k)
	n := len(f.rows)
	from := 0
	for i := 0; i < k; i++ {
		to := from + n/k
		if i < n%k {
			to++
		}
		chunks = append(chunks, f.Slice(from, to))
		from = to
	}
	return chunks
}

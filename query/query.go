package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pteich/elastic-frame/elastic"
)

// ScrollWindow is the page size used when a query asks for all matching
// documents.
const ScrollWindow = 10000

// Kind tags a Fragment.
type Kind int

const (
	KindQuery Kind = iota + 1
	KindSort
	KindAggregation
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindSort:
		return "sort"
	case KindAggregation:
		return "aggregation"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Fragment is a set of top-level request body keys. Fragments are never
// modified after construction, Combine always returns a new one.
type Fragment struct {
	kind   Kind
	keys   *orderedmap.OrderedMap[string, json.RawMessage]
	size   int
	source []string
}

type queryOptions struct {
	size   int
	source []string
}

// QueryOption configures NewQuery.
type QueryOption func(*queryOptions)

// WithSize limits the number of returned documents. 0 means all matching
// documents.
func WithSize(n int) QueryOption {
	return func(o *queryOptions) {
		o.size = n
	}
}

// WithSource restricts the returned document fields.
func WithSource(fields ...string) QueryOption {
	return func(o *queryOptions) {
		o.source = append(o.source, fields...)
	}
}

// NewQuery wraps body as the "query" key.
func NewQuery(body string, opts ...QueryOption) (*Fragment, error) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.size < 0 {
		return nil, fmt.Errorf("%w: query size %d is negative", elastic.ErrInvalidArgument, o.size)
	}
	for _, field := range o.source {
		if strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("%w: empty source field", elastic.ErrInvalidArgument)
		}
	}

	f, err := newFragment(KindQuery, "query", body)
	if err != nil {
		return nil, err
	}
	f.size = o.size
	f.source = o.source
	return f, nil
}

// NewSort wraps body as the "sort" key.
func NewSort(body string) (*Fragment, error) {
	return newFragment(KindSort, "sort", body)
}

// NewAggregation wraps body as the "aggs" key.
func NewAggregation(body string) (*Fragment, error) {
	return newFragment(KindAggregation, "aggs", body)
}

func newFragment(kind Kind, key, body string) (*Fragment, error) {
	raw := strings.TrimSpace(body)
	if raw == "" {
		return nil, fmt.Errorf("%w: %s body is empty", elastic.ErrInvalidArgument, kind)
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("%w: %s body is not valid JSON", elastic.ErrInvalidArgument, kind)
	}

	keys := orderedmap.New[string, json.RawMessage]()
	keys.Set(key, json.RawMessage(raw))
	return &Fragment{kind: kind, keys: keys}, nil
}

func (f *Fragment) Kind() Kind { return f.kind }

// Size is the document limit of a query. 0 means all matching documents.
func (f *Fragment) Size() int { return f.size }

func (f *Fragment) Source() []string {
	return append([]string(nil), f.source...)
}

// Keys lists the top-level body keys in order.
func (f *Fragment) Keys() []string {
	keys := make([]string, 0, f.keys.Len())
	for pair := f.keys.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Combine merges a query with a sort or an aggregation, in either order.
// Query+Sort stays a query and keeps the size and source of the query.
// Query+Aggregation becomes an aggregation with size forced to 0.
func Combine(a, b *Fragment) (*Fragment, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil fragment", elastic.ErrInvalidArgument)
	}

	switch [2]Kind{a.kind, b.kind} {
	case [2]Kind{KindQuery, KindSort}:
		return merge(KindQuery, a, a, b)
	case [2]Kind{KindSort, KindQuery}:
		return merge(KindQuery, b, a, b)
	case [2]Kind{KindQuery, KindAggregation}, [2]Kind{KindAggregation, KindQuery}:
		return merge(KindAggregation, nil, a, b)
	}
	return nil, fmt.Errorf("%w: cannot combine %s with %s", elastic.ErrInvalidCombination, a.kind, b.kind)
}

// merge concatenates the keys of a and b. The limits of from are inherited,
// aggregations start with a zero size instead.
func merge(kind Kind, from *Fragment, a, b *Fragment) (*Fragment, error) {
	out := &Fragment{kind: kind, keys: orderedmap.New[string, json.RawMessage]()}
	if kind == KindAggregation {
		out.keys.Set("size", json.RawMessage("0"))
	}
	if from != nil {
		out.size = from.size
		out.source = from.source
	}

	for _, operand := range []*Fragment{a, b} {
		for pair := operand.keys.Oldest(); pair != nil; pair = pair.Next() {
			if kind == KindAggregation && pair.Key == "size" {
				continue
			}
			if _, exists := out.keys.Get(pair.Key); exists {
				return nil, fmt.Errorf("%w: both fragments set %q", elastic.ErrInvalidCombination, pair.Key)
			}
			out.keys.Set(pair.Key, pair.Value)
		}
	}
	return out, nil
}

// Render returns the compact request body. Queries start with "size", where the
// 0 sentinel becomes ScrollWindow, followed by "_source" when set.
func (f *Fragment) Render() ([]byte, error) {
	switch f.kind {
	case KindQuery:
		size := f.size
		if size == 0 {
			size = ScrollWindow
		}
		return f.RenderSize(size)
	case KindAggregation:
		if _, ok := f.keys.Get("size"); ok {
			return json.Marshal(f.keys)
		}
		return f.render(json.RawMessage("0"), nil)
	default:
		return json.Marshal(f.keys)
	}
}

// RenderSize renders a query with an explicit page size.
func (f *Fragment) RenderSize(size int) ([]byte, error) {
	if f.kind != KindQuery {
		return nil, fmt.Errorf("%w: %s fragment has no size", elastic.ErrInvalidArgument, f.kind)
	}
	var source json.RawMessage
	if len(f.source) > 0 {
		b, err := json.Marshal(f.source)
		if err != nil {
			return nil, err
		}
		source = b
	}
	return f.render(json.RawMessage(strconv.Itoa(size)), source)
}

// RenderIDs renders a query that only returns document ids.
func (f *Fragment) RenderIDs(size int) ([]byte, error) {
	if f.kind != KindQuery {
		return nil, fmt.Errorf("%w: %s fragment cannot select ids", elastic.ErrInvalidArgument, f.kind)
	}
	return f.render(json.RawMessage(strconv.Itoa(size)), json.RawMessage("false"))
}

func (f *Fragment) render(size, source json.RawMessage) ([]byte, error) {
	body := orderedmap.New[string, json.RawMessage]()
	body.Set("size", size)
	if source != nil {
		body.Set("_source", source)
	}
	for pair := f.keys.Oldest(); pair != nil; pair = pair.Next() {
		body.Set(pair.Key, pair.Value)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", f.kind, err)
	}
	return b, nil
}

// Pretty renders the body indented for display.
func (f *Fragment) Pretty() (string, error) {
	b, err := f.Render()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (f *Fragment) String() string {
	b, err := f.Render()
	if err != nil {
		return f.kind.String() + ": " + err.Error()
	}
	return string(b)
}

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pteich/elastic-frame/elastic"
	"github.com/pteich/elastic-frame/query"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

// fakeCluster serves the search endpoints from canned pages. pages[0] answers
// the initial search, every further scroll request takes the next page.
type fakeCluster struct {
	mu       sync.Mutex
	pages    []string
	failPage int
	requests []recorded
	cleared  []string
}

func (c *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})

	if r.URL.Path == "/_search/scroll" && r.Method == http.MethodDelete {
		var req struct {
			ScrollID []string `json:"scroll_id"`
		}
		_ = json.Unmarshal(body, &req)
		c.cleared = append(c.cleared, req.ScrollID...)
		w.Write([]byte(`{"succeeded":true}`))
		return
	}

	n := len(c.requests) - 1
	if c.failPage > 0 && n == c.failPage {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"search_context_missing_exception"}`))
		return
	}
	if n >= len(c.pages) {
		w.Write([]byte(`{"_scroll_id":"done","hits":{"hits":[]}}`))
		return
	}
	w.Write([]byte(c.pages[n]))
}

func page(scrollID string, ids ...int) string {
	hits := make([]string, len(ids))
	for i, id := range ids {
		hits[i] = fmt.Sprintf(`{"_id":"%d","_source":{"id":%d,"species":"setosa","dims":{"w":%d}}}`, id, id, id*10)
	}
	return fmt.Sprintf(`{"_scroll_id":%q,"hits":{"hits":[%s]}}`, scrollID, strings.Join(hits, ","))
}

func newSearcher(t *testing.T, c *fakeCluster, opts ...Option) (*Searcher, *elastic.Locator) {
	t.Helper()
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)

	tr, err := elastic.NewHTTPTransport(srv.URL, srv.Client())
	require.NoError(t, err)
	loc, err := elastic.NewLocator(srv.URL, "iris", "")
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	return New(tr, append([]Option{WithLogger(log)}, opts...)...), loc
}

func TestSearch_BoundedSingleRequest(t *testing.T) {
	c := &fakeCluster{pages: []string{page("", 1, 2, 3)}}
	s, loc := newSearcher(t, c)

	f, err := query.NewQuery(`{"match_all":{}}`, query.WithSize(2))
	require.NoError(t, err)

	out, err := s.Search(context.Background(), loc, f)
	require.NoError(t, err)

	require.Len(t, c.requests, 1)
	assert.Equal(t, http.MethodPost, c.requests[0].method)
	assert.Equal(t, "/iris/_search", c.requests[0].path)
	assert.Empty(t, c.requests[0].query)
	assert.JSONEq(t, `{"size":2,"query":{"match_all":{}}}`, c.requests[0].body)

	assert.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"id", "species", "dims.w"}, out.Columns())
	assert.Equal(t, []any{int64(1), int64(2)}, out.Column("id"))
}

func TestSearch_SourceProjectionUsesWindow(t *testing.T) {
	c := &fakeCluster{pages: []string{page("", 1)}}
	s, loc := newSearcher(t, c)

	f, err := query.NewQuery(`{"match_all":{}}`, query.WithSource("species"))
	require.NoError(t, err)

	_, err = s.Search(context.Background(), loc, f)
	require.NoError(t, err)

	require.Len(t, c.requests, 1)
	assert.JSONEq(t, `{"size":10000,"_source":["species"],"query":{"match_all":{}}}`, c.requests[0].body)
}

func TestSearch_ScrollsUntilEmptyPage(t *testing.T) {
	c := &fakeCluster{pages: []string{
		page("s1", 1, 2),
		page("s2", 3),
		page("s3", 4, 5),
		page("s4"),
	}}
	s, loc := newSearcher(t, c)

	f, err := query.NewQuery(`{"match_all":{}}`)
	require.NoError(t, err)

	out, err := s.Search(context.Background(), loc, f)
	require.NoError(t, err)

	assert.Equal(t, 5, out.Len())
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}, out.Column("id"))

	// initial search, three scroll pages, one release
	require.Len(t, c.requests, 5)
	assert.Equal(t, "scroll=60000ms", c.requests[0].query)
	assert.JSONEq(t, `{"size":10000,"query":{"match_all":{}}}`, c.requests[0].body)
	for i, id := range []string{"s1", "s2", "s3"} {
		r := c.requests[i+1]
		assert.Equal(t, "/_search/scroll", r.path)
		assert.JSONEq(t, fmt.Sprintf(`{"scroll":"60000ms","scroll_id":%q}`, id), r.body)
	}
	assert.Equal(t, []string{"s4"}, c.cleared)
}

func TestSearch_ScrollPageFailureReleasesContext(t *testing.T) {
	c := &fakeCluster{pages: []string{page("s1", 1), page("s2", 2)}, failPage: 2}
	s, loc := newSearcher(t, c)

	f, err := query.NewQuery(`{"match_all":{}}`)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), loc, f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, elastic.ErrHTTP))

	var httpErr *elastic.HTTPStatusError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, []string{"s2"}, c.cleared)
}

func TestSearch_CancelledContextStillReleases(t *testing.T) {
	c := &fakeCluster{pages: []string{page("s1", 1), page("s2", 2)}}
	s, loc := newSearcher(t, c, WithScrollWindow(1))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := s.scroll(ctx, loc, []byte(`{}`), func([]hit) error {
		calls++
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"s1"}, c.cleared)
}

func TestSearch_Aggregations(t *testing.T) {
	tests := []struct {
		name    string
		aggs    string
		columns []string
		rows    int
	}{
		{
			name:    "terms buckets",
			aggs:    `{"species":{"buckets":[{"key":"setosa","doc_count":50},{"key":"virginica","doc_count":50}]}}`,
			columns: []string{"key", "doc_count"},
			rows:    2,
		},
		{
			name:    "keyed buckets",
			aggs:    `{"ranges":{"buckets":{"small":{"doc_count":3},"large":{"doc_count":4}}}}`,
			columns: []string{"key", "doc_count"},
			rows:    2,
		},
		{
			name:    "metrics",
			aggs:    `{"avg_width":{"value":1.2},"stats":{"count":3,"min":1}}`,
			columns: []string{"aggregation", "value", "count", "min"},
			rows:    2,
		},
		{
			name:    "nested sub aggregation",
			aggs:    `{"species":{"buckets":[{"key":"setosa","doc_count":50,"w":{"value":0.2}}]}}`,
			columns: []string{"key", "doc_count", "w.value"},
			rows:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCluster{pages: []string{`{"hits":{"hits":[]},"aggregations":` + tt.aggs + `}`}}
			s, loc := newSearcher(t, c)

			q, err := query.NewQuery(`{"match_all":{}}`, query.WithSize(5))
			require.NoError(t, err)
			a, err := query.NewAggregation(`{"species":{"terms":{"field":"species"}}}`)
			require.NoError(t, err)
			f, err := query.Combine(q, a)
			require.NoError(t, err)

			out, err := s.Search(context.Background(), loc, f)
			require.NoError(t, err)

			require.Len(t, c.requests, 1)
			assert.True(t, strings.HasPrefix(c.requests[0].body, `{"size":0,`))
			assert.Equal(t, tt.columns, out.Columns())
			assert.Equal(t, tt.rows, out.Len())
		})
	}
}

func TestSearch_KeyedBucketKeys(t *testing.T) {
	c := &fakeCluster{pages: []string{`{"aggregations":{"r":{"buckets":{"small":{"doc_count":3},"large":{"doc_count":4}}}}}`}}
	s, loc := newSearcher(t, c)

	a, err := query.NewAggregation(`{"r":{"range":{"field":"w","keyed":true,"ranges":[{"to":1},{"from":1}]}}}`)
	require.NoError(t, err)

	out, err := s.Search(context.Background(), loc, a)
	require.NoError(t, err)
	assert.Equal(t, []any{"small", "large"}, out.Column("key"))
	assert.Equal(t, []any{int64(3), int64(4)}, out.Column("doc_count"))
}

func TestSearch_SortAloneRejected(t *testing.T) {
	c := &fakeCluster{}
	s, loc := newSearcher(t, c)

	f, err := query.NewSort(`["_doc"]`)
	require.NoError(t, err)

	_, err = s.Search(context.Background(), loc, f)
	assert.True(t, errors.Is(err, elastic.ErrInvalidArgument))
	assert.Empty(t, c.requests)
}

func TestIDs(t *testing.T) {
	c := &fakeCluster{pages: []string{page("s1", 10, 11), page("s1", 12), page("s1")}}
	s, loc := newSearcher(t, c)

	f, err := query.NewQuery(`{"match_all":{}}`)
	require.NoError(t, err)

	ids, err := s.IDs(context.Background(), loc, f)
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11", "12"}, ids)
	assert.JSONEq(t, `{"size":10000,"_source":false,"query":{"match_all":{}}}`, c.requests[0].body)
	assert.Equal(t, []string{"s1"}, c.cleared)
}

func TestSearch_LogsScrollSummary(t *testing.T) {
	c := &fakeCluster{pages: []string{page("s1", 1), page("s1")}}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	srv := httptest.NewServer(c)
	defer srv.Close()
	tr, _ := elastic.NewHTTPTransport(srv.URL, srv.Client())
	loc, _ := elastic.NewLocator(srv.URL, "iris", "")

	f, _ := query.NewQuery(`{"match_all":{}}`)
	_, err := New(tr, WithLogger(log)).Search(context.Background(), loc, f)
	require.NoError(t, err)

	var summary *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "scroll finished" {
			summary = e
		}
	}
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Data["hits"])
	assert.Equal(t, "iris", summary.Data["index"])
}

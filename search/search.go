// Package search runs query fragments against an index and collects the
// results into frames, either with a single bounded request or by scrolling.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pteich/elastic-frame/elastic"
	"github.com/pteich/elastic-frame/frame"
	"github.com/pteich/elastic-frame/query"
)

const (
	DefaultScrollKeepAlive = time.Minute
	releaseTimeout         = 10 * time.Second
)

type Searcher struct {
	transport elastic.Transport
	log       logrus.FieldLogger
	keepAlive time.Duration
	window    int
}

type Option func(*Searcher)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Searcher) {
		s.log = log
	}
}

// WithScrollKeepAlive sets how long the cluster keeps a scroll context between
// two page requests.
func WithScrollKeepAlive(d time.Duration) Option {
	return func(s *Searcher) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// WithScrollWindow sets the page size of scroll requests.
func WithScrollWindow(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.window = n
		}
	}
}

func New(t elastic.Transport, opts ...Option) *Searcher {
	s := &Searcher{
		transport: t,
		log:       logrus.StandardLogger(),
		keepAlive: DefaultScrollKeepAlive,
		window:    query.ScrollWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []hit `json:"hits"`
	} `json:"hits"`
	Aggregations json.RawMessage `json:"aggregations"`
}

type hit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// Search executes f against loc. Aggregations and sized queries take a single
// request, a query without size or source projection scrolls through all
// matching documents.
func (s *Searcher) Search(ctx context.Context, loc *elastic.Locator, f *query.Fragment) (*frame.Frame, error) {
	switch {
	case f == nil:
		return nil, fmt.Errorf("%w: nil fragment", elastic.ErrInvalidArgument)
	case f.Kind() == query.KindAggregation:
		body, err := f.Render()
		if err != nil {
			return nil, err
		}
		res, err := s.search(ctx, loc, body, nil)
		if err != nil {
			return nil, err
		}
		return aggregationsFrame(res.Aggregations)
	case f.Kind() != query.KindQuery:
		return nil, fmt.Errorf("%w: cannot search with a %s fragment alone", elastic.ErrInvalidArgument, f.Kind())
	case f.Size() > 0:
		return s.bounded(ctx, loc, f, f.Size())
	case len(f.Source()) > 0:
		return s.bounded(ctx, loc, f, s.window)
	}

	body, err := f.RenderSize(s.window)
	if err != nil {
		return nil, err
	}

	var pages []*frame.Frame
	err = s.scroll(ctx, loc, body, func(hits []hit) error {
		page, err := hitsFrame(hits)
		if err != nil {
			return err
		}
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frame.Concat(pages...), nil
}

// IDs scrolls through all documents matching f and returns their ids only.
func (s *Searcher) IDs(ctx context.Context, loc *elastic.Locator, f *query.Fragment) ([]string, error) {
	if f == nil || f.Kind() != query.KindQuery {
		return nil, fmt.Errorf("%w: ids need a query fragment", elastic.ErrInvalidArgument)
	}
	body, err := f.RenderIDs(s.window)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = s.scroll(ctx, loc, body, func(hits []hit) error {
		for _, h := range hits {
			ids = append(ids, h.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Searcher) bounded(ctx context.Context, loc *elastic.Locator, f *query.Fragment, size int) (*frame.Frame, error) {
	body, err := f.RenderSize(size)
	if err != nil {
		return nil, err
	}
	res, err := s.search(ctx, loc, body, nil)
	if err != nil {
		return nil, err
	}

	hits := res.Hits.Hits
	if len(hits) > size {
		hits = hits[:size]
	}
	s.log.WithFields(logrus.Fields{"index": loc.Index(), "hits": len(hits)}).Debug("bounded search done")
	return hitsFrame(hits)
}

func (s *Searcher) search(ctx context.Context, loc *elastic.Locator, body []byte, params url.Values) (*searchResponse, error) {
	req, err := elastic.NewRequest(ctx, http.MethodPost, loc.SearchPath(), params, bytes.NewReader(body), elastic.ContentTypeJSON)
	if err != nil {
		return nil, err
	}
	raw, err := elastic.Do(s.transport, req)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", loc, err)
	}
	return decodeResponse(raw)
}

func decodeResponse(raw []byte) (*searchResponse, error) {
	var res searchResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &res, nil
}

func hitsFrame(hits []hit) (*frame.Frame, error) {
	out := frame.Empty()
	for i, h := range hits {
		src := bytes.TrimSpace(h.Source)
		if len(src) == 0 || bytes.Equal(src, []byte("null")) {
			src = []byte("{}")
		}
		rec, err := frame.DecodeRecord(src)
		if err != nil {
			return nil, fmt.Errorf("hit %d (%s): %w", i, h.ID, err)
		}
		out.AppendRecord(rec)
	}
	return out, nil
}

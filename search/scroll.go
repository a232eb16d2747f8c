package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/pteich/elastic-frame/elastic"
)

type scrollState struct {
	id        string
	page      []hit
	exhausted bool
}

func (st *scrollState) advance(res *searchResponse) {
	if res.ScrollID != "" {
		st.id = res.ScrollID
	}
	st.page = res.Hits.Hits
	st.exhausted = len(st.page) == 0
}

// scroll opens a scroll context with body and hands every non-empty page to
// handle in order. The context is released on every return path.
func (s *Searcher) scroll(ctx context.Context, loc *elastic.Locator, body []byte, handle func([]hit) error) error {
	log := s.log.WithField("index", loc.Index())

	params := url.Values{"scroll": {elastic.FormatDuration(s.keepAlive)}}
	res, err := s.search(ctx, loc, body, params)
	if err != nil {
		return err
	}

	st := &scrollState{}
	st.advance(res)
	defer s.release(ctx, log, st)

	pages, total := 0, 0
	for !st.exhausted {
		pages++
		total += len(st.page)
		log.WithFields(logrus.Fields{"page": pages, "hits": len(st.page)}).Debug("scroll page")

		if err := handle(st.page); err != nil {
			return err
		}
		if st.id == "" {
			return fmt.Errorf("scrolling %s: response carries no scroll id", loc)
		}

		res, err := s.next(ctx, st.id)
		if err != nil {
			return fmt.Errorf("scrolling %s page %d: %w", loc, pages+1, err)
		}
		st.advance(res)
	}

	log.WithFields(logrus.Fields{"pages": pages, "hits": total}).Info("scroll finished")
	return nil
}

func (s *Searcher) next(ctx context.Context, scrollID string) (*searchResponse, error) {
	body, err := json.Marshal(map[string]string{
		"scroll":    elastic.FormatDuration(s.keepAlive),
		"scroll_id": scrollID,
	})
	if err != nil {
		return nil, err
	}

	res, err := esapi.ScrollRequest{Body: bytes.NewReader(body)}.Do(ctx, s.transport)
	if err != nil {
		return nil, err
	}
	raw, err := elastic.ReadResponse(http.MethodPost, "/_search/scroll", res)
	if err != nil {
		return nil, err
	}
	return decodeResponse(raw)
}

// release clears the scroll context. It runs detached from ctx so that a
// cancelled retrieval still frees the context on the cluster.
func (s *Searcher) release(ctx context.Context, log logrus.FieldLogger, st *scrollState) {
	if st.id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	body, err := json.Marshal(map[string][]string{"scroll_id": {st.id}})
	if err != nil {
		log.WithError(err).Warn("encoding scroll release")
		return
	}
	res, err := esapi.ClearScrollRequest{Body: bytes.NewReader(body)}.Do(ctx, s.transport)
	if err == nil {
		_, err = elastic.ReadResponse(http.MethodDelete, "/_search/scroll", res)
	}
	if err != nil {
		log.WithError(err).Warn("releasing scroll context failed")
		return
	}
	log.Debug("scroll context released")
}

// Package indices creates, removes and inspects indices.
package indices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/pteich/elastic-frame/elastic"
)

// Create creates the index of loc. An empty mapping creates it with cluster
// defaults.
func Create(ctx context.Context, t elastic.Transport, loc *elastic.Locator, mapping string) error {
	req := esapi.IndicesCreateRequest{Index: loc.Index()}
	if body := strings.TrimSpace(mapping); body != "" {
		if !json.Valid([]byte(body)) {
			return fmt.Errorf("%w: mapping for %q is not valid JSON", elastic.ErrInvalidArgument, loc.Index())
		}
		req.Body = strings.NewReader(body)
	}

	res, err := req.Do(ctx, t)
	if err != nil {
		return fmt.Errorf("creating index %q: %w", loc.Index(), err)
	}
	if _, err := elastic.ReadResponse(http.MethodPut, loc.IndexPath(), res); err != nil {
		return fmt.Errorf("creating index %q: %w", loc.Index(), err)
	}
	return nil
}

// Delete removes the whole index of loc.
func Delete(ctx context.Context, t elastic.Transport, loc *elastic.Locator) error {
	res, err := esapi.IndicesDeleteRequest{Index: []string{loc.Index()}}.Do(ctx, t)
	if err != nil {
		return fmt.Errorf("deleting index %q: %w", loc.Index(), err)
	}
	if _, err := elastic.ReadResponse(http.MethodDelete, loc.IndexPath(), res); err != nil {
		return fmt.Errorf("deleting index %q: %w", loc.Index(), err)
	}
	return nil
}

// Refresh makes all operations on the index visible to search.
func Refresh(ctx context.Context, t elastic.Transport, loc *elastic.Locator) error {
	res, err := esapi.IndicesRefreshRequest{Index: []string{loc.Index()}}.Do(ctx, t)
	if err != nil {
		return fmt.Errorf("refreshing index %q: %w", loc.Index(), err)
	}
	if _, err := elastic.ReadResponse(http.MethodPost, loc.IndexPath()+"/_refresh", res); err != nil {
		return fmt.Errorf("refreshing index %q: %w", loc.Index(), err)
	}
	return nil
}

// List returns the sorted names of all indices.
func List(ctx context.Context, t elastic.Transport) ([]string, error) {
	res, err := esapi.CatIndicesRequest{Format: "json"}.Do(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("listing indices: %w", err)
	}
	raw, err := elastic.ReadResponse(http.MethodGet, "/_cat/indices", res)
	if err != nil {
		return nil, fmt.Errorf("listing indices: %w", err)
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decoding index list: %w", err)
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Index)
	}
	sort.Strings(names)
	return names, nil
}

// Version returns the version number reported by the cluster.
func Version(ctx context.Context, t elastic.Transport) (string, error) {
	res, err := esapi.InfoRequest{}.Do(ctx, t)
	if err != nil {
		return "", fmt.Errorf("reading cluster info: %w", err)
	}
	raw, err := elastic.ReadResponse(http.MethodGet, "/", res)
	if err != nil {
		return "", fmt.Errorf("reading cluster info: %w", err)
	}

	var info struct {
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", fmt.Errorf("decoding cluster info: %w", err)
	}
	return info.Version.Number, nil
}

package v7

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/olivere/elastic/v7"
)

// errorStatuses are handed to olivere as ignored so that non-2xx responses
// come back as responses and the caller decides what is fatal.
var errorStatuses = func() []int {
	statuses := make([]int, 0, 200)
	for s := 400; s < 600; s++ {
		statuses = append(statuses, s)
	}
	return statuses
}()

// Client adapts an olivere v7 client to elastic.Transport.
type Client struct {
	client *elastic.Client
}

func NewClient(esOpts []elastic.ClientOptionFunc) (*Client, error) {
	client, err := elastic.NewClient(esOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

func (c *Client) Perform(req *http.Request) (*http.Response, error) {
	opts := elastic.PerformRequestOptions{
		Method:       req.Method,
		Path:         req.URL.Path,
		Params:       req.URL.Query(),
		ContentType:  req.Header.Get("Content-Type"),
		IgnoreErrors: errorStatuses,
		Headers:      http.Header{},
	}
	for key, values := range req.Header {
		if key == "Content-Type" {
			continue
		}
		opts.Headers[key] = values
	}

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		if len(body) > 0 {
			opts.Body = string(body)
		}
	}

	res, err := c.client.PerformRequest(req.Context(), opts)
	if res != nil {
		return &http.Response{
			Status:     http.StatusText(res.StatusCode),
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       io.NopCloser(bytes.NewReader(res.Body)),
			Request:    req,
		}, nil
	}

	var esErr *elastic.Error
	if errors.As(err, &esErr) {
		details, _ := json.Marshal(esErr.Details)
		return &http.Response{
			Status:     http.StatusText(esErr.Status),
			StatusCode: esErr.Status,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewReader(details)),
			Request:    req,
		}, nil
	}
	return nil, err
}

func (c *Client) Stop() {
	c.client.Stop()
}

func SetHttpClient(httpClient *http.Client) elastic.ClientOptionFunc {
	return elastic.SetHttpClient(httpClient)
}

func SetURL(urls ...string) elastic.ClientOptionFunc {
	return elastic.SetURL(urls...)
}

func SetSniff(enabled bool) elastic.ClientOptionFunc {
	return elastic.SetSniff(enabled)
}

func SetHealthcheckInterval(interval time.Duration) elastic.ClientOptionFunc {
	return elastic.SetHealthcheckInterval(interval)
}

func SetHealthcheck(enabled bool) elastic.ClientOptionFunc {
	return elastic.SetHealthcheck(enabled)
}

func SetErrorLog(logger elastic.Logger) elastic.ClientOptionFunc {
	return elastic.SetErrorLog(logger)
}

func SetTraceLog(logger elastic.Logger) elastic.ClientOptionFunc {
	return elastic.SetTraceLog(logger)
}

func SetBasicAuth(username, password string) elastic.ClientOptionFunc {
	return elastic.SetBasicAuth(username, password)
}

package elastic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	ContentTypeJSON   = "application/json"
	ContentTypeNDJSON = "application/x-ndjson"
)

// Transport performs a single HTTP round trip against a cluster. Request URLs
// only carry a path relative to the cluster root, the transport supplies scheme,
// host and credentials. It has the same shape as esapi.Transport, so
// *elasticsearch.Client from go-elasticsearch v8 and v9 satisfy it directly.
type Transport interface {
	Perform(*http.Request) (*http.Response, error)
}

// HTTPTransport is a Transport on top of a plain *http.Client.
type HTTPTransport struct {
	base     *url.URL
	client   *http.Client
	username string
	password string
}

func NewHTTPTransport(baseURL string, client *http.Client) (*HTTPTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: cluster url %q", ErrInvalidArgument, baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{base: u, client: client}, nil
}

func (t *HTTPTransport) SetBasicAuth(username, password string) {
	t.username = username
	t.password = password
}

func (t *HTTPTransport) Perform(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.base.Scheme
	req.URL.Host = t.base.Host
	if prefix := strings.TrimSuffix(t.base.Path, "/"); prefix != "" {
		req.URL.Path = prefix + req.URL.Path
	}
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	return t.client.Do(req)
}

// NewRequest builds a request for a path relative to the cluster root.
func NewRequest(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s %s request: %w", method, path, err)
	}
	if len(params) > 0 {
		req.URL.RawQuery = params.Encode()
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", ContentTypeJSON)
	return req, nil
}

// Do performs req and returns the body of a 2xx response. Every other status
// is returned as *HTTPStatusError.
func Do(t Transport, req *http.Request) ([]byte, error) {
	res, err := t.Perform(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	return readBody(req.Method, req.URL.Path, res.StatusCode, res.Body)
}

// ReadResponse does what Do does for responses of esapi requests.
func ReadResponse(method, path string, res *esapi.Response) ([]byte, error) {
	if res.Body == nil {
		return readBody(method, path, res.StatusCode, http.NoBody)
	}
	defer res.Body.Close()

	return readBody(method, path, res.StatusCode, res.Body)
}

func readBody(method, path string, status int, r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading response of %s %s: %w", method, path, err)
	}
	if status < 200 || status > 299 {
		return nil, &HTTPStatusError{
			Method:     method,
			URL:        path,
			StatusCode: status,
			Body:       string(body),
		}
	}
	return body, nil
}

// FormatDuration renders d in the time unit syntax the cluster accepts.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return strconv.FormatInt(int64(d), 10) + "nanos"
	}
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}

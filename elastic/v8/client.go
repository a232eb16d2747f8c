package v8

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
)

// Client wraps the official v8 client as an elastic.Transport.
type Client struct {
	client *elasticsearch.Client
}

func NewClient(cfg elasticsearch.Config) (*Client, error) {
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{client: client}, nil
}

func (c *Client) Perform(req *http.Request) (*http.Response, error) {
	return c.client.Perform(req)
}

func (c *Client) Stop() {}

func NewConfig(url string, username string, password string, httpClient *http.Client) elasticsearch.Config {
	cfg := elasticsearch.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
	}
	if httpClient != nil {
		cfg.Transport = httpClient.Transport
	}
	return cfg
}

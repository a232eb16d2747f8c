package elastic

import (
	"fmt"
	"net/url"
	"strings"
)

// Locator identifies an index, and optionally a document type, on a cluster.
type Locator struct {
	clusterURL string
	index      string
	docType    string
}

// NewLocator validates its arguments and returns an immutable Locator.
// docType may be empty.
func NewLocator(clusterURL, index, docType string) (*Locator, error) {
	u, err := url.Parse(strings.TrimSpace(clusterURL))
	if err != nil {
		return nil, fmt.Errorf("%w: cluster url %q: %v", ErrInvalidArgument, clusterURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: cluster url %q must use http or https", ErrInvalidArgument, clusterURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: cluster url %q has no host", ErrInvalidArgument, clusterURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("%w: cluster url %q must not carry a query or fragment", ErrInvalidArgument, clusterURL)
	}

	if err := validName("index", index); err != nil {
		return nil, err
	}
	if docType != "" {
		if err := validName("doc type", docType); err != nil {
			return nil, err
		}
	}

	return &Locator{
		clusterURL: strings.TrimRight(u.String(), "/"),
		index:      index,
		docType:    docType,
	}, nil
}

func validName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, kind)
	}
	if strings.ContainsAny(name, "/ \t\n") {
		return fmt.Errorf("%w: %s %q contains illegal characters", ErrInvalidArgument, kind, name)
	}
	return nil
}

func (l *Locator) ClusterURL() string { return l.clusterURL }
func (l *Locator) Index() string      { return l.index }
func (l *Locator) DocType() string    { return l.docType }

// IndexPath is the path of the index relative to the cluster root.
func (l *Locator) IndexPath() string {
	return "/" + l.index
}

// SearchPath is the search endpoint relative to the cluster root.
func (l *Locator) SearchPath() string {
	if l.docType == "" {
		return "/" + l.index + "/_search"
	}
	return "/" + l.index + "/" + l.docType + "/_search"
}

// SearchURL is the absolute search endpoint.
func (l *Locator) SearchURL() string {
	return l.clusterURL + l.SearchPath()
}

func (l *Locator) String() string {
	if l.docType == "" {
		return l.clusterURL + "/" + l.index
	}
	return l.clusterURL + "/" + l.index + "/" + l.docType
}

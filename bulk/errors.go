package bulk

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// BulkError reports the items of an accepted bulk request that the cluster
// rejected.
type BulkError struct {
	Chunk  int
	Failed int
	errs   *multierror.Error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk chunk %d: %d items failed: %s", e.Chunk, e.Failed, e.errs.Error())
}

func (e *BulkError) Errors() []error {
	return e.errs.WrappedErrors()
}

func (e *BulkError) Unwrap() error {
	return e.errs.ErrorOrNil()
}

type itemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type itemResult struct {
	ID     string     `json:"_id"`
	Status int        `json:"status"`
	Error  *itemError `json:"error"`
}

type bulkResponse struct {
	Errors bool                    `json:"errors"`
	Items  []map[string]itemResult `json:"items"`
}

func checkItems(chunk int, raw []byte) error {
	var res bulkResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("bulk chunk %d: decoding response: %w", chunk, err)
	}
	if !res.Errors {
		return nil
	}

	var errs *multierror.Error
	for _, item := range res.Items {
		for action, r := range item {
			if r.Error == nil {
				continue
			}
			errs = multierror.Append(errs, fmt.Errorf("%s %s: [%d] %s: %s", action, r.ID, r.Status, r.Error.Type, r.Error.Reason))
		}
	}
	if errs == nil {
		return nil
	}
	errs.ErrorFormat = func(es []error) string {
		msgs := make([]string, len(es))
		for i, err := range es {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return &BulkError{Chunk: chunk, Failed: errs.Len(), errs: errs}
}

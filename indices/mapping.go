package indices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/pteich/elastic-frame/elastic"
)

// KeywordStringsMapping maps every dynamically added string field as keyword.
func KeywordStringsMapping() string {
	return `{"mappings":{"dynamic_templates":[{"strings":{"match_mapping_type":"string","mapping":{"type":"keyword"}}}]}}`
}

// FielddataMapping maps dynamic strings as text with fielddata enabled so they
// can be sorted and aggregated on.
func FielddataMapping() string {
	return `{"mappings":{"dynamic_templates":[{"strings":{"match_mapping_type":"string","mapping":{"type":"text","fielddata":true}}}]}}`
}

type property struct {
	Properties map[string]property `json:"properties"`
	Fields     map[string]property `json:"fields"`
}

// Fields returns the sorted, dotted names of all mapped fields of the index,
// including multi-fields.
func Fields(ctx context.Context, t elastic.Transport, loc *elastic.Locator) ([]string, error) {
	res, err := esapi.IndicesGetMappingRequest{Index: []string{loc.Index()}}.Do(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("reading mapping of %q: %w", loc.Index(), err)
	}
	raw, err := elastic.ReadResponse(http.MethodGet, loc.IndexPath()+"/_mapping", res)
	if err != nil {
		return nil, fmt.Errorf("reading mapping of %q: %w", loc.Index(), err)
	}
	return mappedFields(raw)
}

func mappedFields(raw []byte) ([]string, error) {
	var byIndex map[string]struct {
		Mappings json.RawMessage `json:"mappings"`
	}
	if err := json.Unmarshal(raw, &byIndex); err != nil {
		return nil, fmt.Errorf("decoding mapping: %w", err)
	}

	seen := map[string]bool{}
	for _, idx := range byIndex {
		var typeless property
		if err := json.Unmarshal(idx.Mappings, &typeless); err != nil {
			return nil, fmt.Errorf("decoding mapping: %w", err)
		}
		if typeless.Properties != nil {
			collect(seen, "", typeless.Properties)
			continue
		}

		// mappings grouped by document type
		var typed map[string]json.RawMessage
		if err := json.Unmarshal(idx.Mappings, &typed); err != nil {
			return nil, fmt.Errorf("decoding typed mapping: %w", err)
		}
		for _, rawType := range typed {
			var p property
			if json.Unmarshal(rawType, &p) == nil {
				collect(seen, "", p.Properties)
			}
		}
	}

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields, nil
}

func collect(seen map[string]bool, prefix string, props map[string]property) {
	for name, p := range props {
		full := name
		if prefix != "" {
			full = prefix + "." + name
		}
		if len(p.Properties) > 0 {
			collect(seen, full, p.Properties)
			continue
		}
		seen[full] = true
		for sub := range p.Fields {
			seen[full+"."+sub] = true
		}
	}
}

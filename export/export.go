package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/cheggaaa/pb.v2"
	"gopkg.in/yaml.v3"

	"github.com/pteich/elastic-frame/bulk"
	"github.com/pteich/elastic-frame/elastic"
	"github.com/pteich/elastic-frame/flags"
	"github.com/pteich/elastic-frame/formats"
	"github.com/pteich/elastic-frame/indices"
	"github.com/pteich/elastic-frame/query"
	"github.com/pteich/elastic-frame/search"
)

// Run executes the mode selected in conf. conf is expected to carry defaults
// already, see flags.SetDefaults.
func Run(ctx context.Context, conf *flags.Flags) error {
	log := NewLogger(conf)

	client, err := createClient(conf, log)
	if err != nil {
		return fmt.Errorf("connecting to ElasticSearch: %w", err)
	}
	defer client.Stop()

	r := &runner{conf: conf, log: log, transport: client.transport}
	switch conf.Mode {
	case flags.ModeExport:
		return r.export(ctx)
	case flags.ModeImport:
		return r.importFile(ctx)
	case flags.ModeDelete:
		return r.delete(ctx)
	case flags.ModeCreate:
		return r.create(ctx)
	case flags.ModeInfo:
		return r.info(ctx)
	default:
		return fmt.Errorf("unknown mode %q", conf.Mode)
	}
}

// NewLogger returns a logger writing to stderr at the configured level.
func NewLogger(conf *flags.Flags) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if conf.Trace && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	return log
}

type runner struct {
	conf      *flags.Flags
	log       *logrus.Logger
	transport elastic.Transport
	stdin     io.Reader
	stdout    io.Writer
}

func (r *runner) locator() (*elastic.Locator, error) {
	return elastic.NewLocator(r.conf.ElasticURL, r.conf.Index, r.conf.DocType)
}

func (r *runner) export(ctx context.Context) error {
	loc, err := r.locator()
	if err != nil {
		return err
	}
	frag, err := buildFragment(r.conf)
	if err != nil {
		return err
	}
	if pretty, err := frag.Pretty(); err == nil {
		r.log.WithField("index", loc.Index()).Debugf("request body:\n%s", pretty)
	}

	searcher := search.New(r.transport, search.WithLogger(r.log))
	result, err := searcher.Search(ctx, loc, frag)
	if err != nil {
		return err
	}

	out, closeOut, err := r.openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	bar := pb.StartNew(result.Len())
	defer bar.Finish()

	output, err := formats.New(r.conf.Format, r.conf.Fields, bar)
	if err != nil {
		return err
	}
	if err := output.Write(ctx, out, result); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *runner) importFile(ctx context.Context) error {
	loc, err := r.locator()
	if err != nil {
		return err
	}
	read, err := formats.Reader(r.conf.Format)
	if err != nil {
		return err
	}

	in, closeIn, err := r.openInput()
	if err != nil {
		return err
	}
	data, err := read(in)
	closeIn()
	if err != nil {
		return fmt.Errorf("reading %s: %w", r.conf.Infile, err)
	}

	bar := pb.StartNew(data.Len())
	defer bar.Finish()

	b := bulk.New(r.transport,
		bulk.WithLogger(r.log),
		bulk.WithWorkers(r.conf.Workers),
		bulk.WithStagingDir(r.conf.StagingDir),
		bulk.WithProgress(func(rows int) {
			bar.Add(rows)
		}),
	)
	if err := b.Index(ctx, loc, data); err != nil {
		return err
	}
	return indices.Refresh(ctx, r.transport, loc)
}

func (r *runner) delete(ctx context.Context) error {
	loc, err := r.locator()
	if err != nil {
		return err
	}
	b := bulk.New(r.transport, bulk.WithLogger(r.log), bulk.WithWorkers(r.conf.Workers), bulk.WithStagingDir(r.conf.StagingDir))

	if ids := r.conf.IDList(); len(ids) > 0 {
		return b.DeleteIDs(ctx, loc, ids)
	}

	var approval bulk.Approval
	if r.conf.Approve {
		approval = bulk.Approved
	}
	return b.DeleteAll(ctx, loc, approval)
}

func (r *runner) create(ctx context.Context) error {
	loc, err := r.locator()
	if err != nil {
		return err
	}

	var mapping string
	switch r.conf.Mapping {
	case "":
	case "keyword":
		mapping = indices.KeywordStringsMapping()
	case "fielddata":
		mapping = indices.FielddataMapping()
	default:
		b, err := os.ReadFile(r.conf.Mapping)
		if err != nil {
			return fmt.Errorf("reading mapping: %w", err)
		}
		mapping = string(b)
	}
	return indices.Create(ctx, r.transport, loc, mapping)
}

type clusterInfo struct {
	Version string   `yaml:"version"`
	Indices []string `yaml:"indices"`
	Fields  []string `yaml:"fields,omitempty"`
}

func (r *runner) info(ctx context.Context) error {
	var info clusterInfo
	var err error

	if info.Version, err = indices.Version(ctx, r.transport); err != nil {
		return err
	}
	if info.Indices, err = indices.List(ctx, r.transport); err != nil {
		return err
	}
	if r.conf.Index != "" {
		loc, err := r.locator()
		if err != nil {
			return err
		}
		if info.Fields, err = indices.Fields(ctx, r.transport, loc); err != nil {
			return err
		}
	}

	out, closeOut, err := r.openOutput()
	if err != nil {
		return err
	}
	defer closeOut()

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(info); err != nil {
		return err
	}
	return enc.Close()
}

func (r *runner) openOutput() (io.Writer, func(), error) {
	if r.conf.Outfile == "-" || r.conf.Outfile == "" {
		if r.stdout != nil {
			return r.stdout, func() {}, nil
		}
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(r.conf.Outfile)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func (r *runner) openInput() (io.Reader, func(), error) {
	if r.conf.Infile == "-" || r.conf.Infile == "" {
		if r.stdin != nil {
			return r.stdin, func() {}, nil
		}
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(r.conf.Infile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// buildFragment turns the query flags into a request fragment: a raw query, a
// Lucene query string or match_all, optionally limited to a time range, then
// combined with sort and aggregations.
func buildFragment(conf *flags.Flags) (*query.Fragment, error) {
	var q json.RawMessage
	switch {
	case conf.RAWQuery != "":
		q = json.RawMessage(conf.RAWQuery)
	case conf.Query != "" && conf.Query != "*":
		b, err := json.Marshal(map[string]any{"query_string": map[string]any{"query": conf.Query}})
		if err != nil {
			return nil, err
		}
		q = b
	default:
		q = json.RawMessage(`{"match_all":{}}`)
	}

	if conf.StartDate != "" || conf.EndDate != "" {
		bounds := map[string]string{}
		if conf.StartDate != "" {
			bounds["gte"] = conf.StartDate
		}
		if conf.EndDate != "" {
			bounds["lte"] = conf.EndDate
		}
		b, err := json.Marshal(map[string]any{
			"bool": map[string]any{
				"must":   []json.RawMessage{q},
				"filter": []any{map[string]any{"range": map[string]any{conf.Timefield: bounds}}},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: rawquery is not valid JSON", elastic.ErrInvalidArgument)
		}
		q = b
	}

	var opts []query.QueryOption
	if conf.Size > 0 {
		opts = append(opts, query.WithSize(conf.Size))
	}
	if len(conf.Fields) > 0 {
		opts = append(opts, query.WithSource(conf.Fields...))
	}
	frag, err := query.NewQuery(string(q), opts...)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(conf.Sort) != "" {
		sort, err := query.NewSort(conf.Sort)
		if err != nil {
			return nil, err
		}
		if frag, err = query.Combine(frag, sort); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(conf.Aggs) != "" {
		aggs, err := query.NewAggregation(conf.Aggs)
		if err != nil {
			return nil, err
		}
		if frag, err = query.Combine(frag, aggs); err != nil {
			return nil, err
		}
	}
	return frag, nil
}

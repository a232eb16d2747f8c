// Package bulk writes frames into an index and deletes documents through the
// _bulk endpoint. Payloads are split into independent chunks, each chunk is
// staged, uploaded with one request and discarded.
package bulk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pteich/elastic-frame/elastic"
	"github.com/pteich/elastic-frame/frame"
	"github.com/pteich/elastic-frame/search"
)

// DefaultChunkBytes is the estimated payload size above which a frame is split
// into several bulk requests.
const DefaultChunkBytes = 10 * 1000 * 1000

const idColumn = "id"

type Bulker struct {
	transport  elastic.Transport
	searcher   *search.Searcher
	log        logrus.FieldLogger
	chunkBytes int64
	stagingDir string
	workers    int
	progress   func(rows int)
}

type Option func(*Bulker)

func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Bulker) {
		b.log = log
	}
}

func WithChunkBytes(n int64) Option {
	return func(b *Bulker) {
		if n > 0 {
			b.chunkBytes = n
		}
	}
}

// WithStagingDir stages every payload in a temporary file inside dir instead
// of memory.
func WithStagingDir(dir string) Option {
	return func(b *Bulker) {
		b.stagingDir = dir
	}
}

// WithWorkers uploads up to n chunks at the same time.
func WithWorkers(n int) Option {
	return func(b *Bulker) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithSearcher sets the searcher used to resolve document ids before deleting.
func WithSearcher(s *search.Searcher) Option {
	return func(b *Bulker) {
		b.searcher = s
	}
}

// WithProgress registers a callback that receives the number of rows of every
// uploaded chunk. It may be called concurrently.
func WithProgress(fn func(rows int)) Option {
	return func(b *Bulker) {
		b.progress = fn
	}
}

func New(t elastic.Transport, opts ...Option) *Bulker {
	b := &Bulker{
		transport:  t,
		log:        logrus.StandardLogger(),
		chunkBytes: DefaultChunkBytes,
		workers:    1,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.searcher == nil {
		b.searcher = search.New(t, search.WithLogger(b.log))
	}
	return b
}

// Index writes every row of f as a document into loc. Column names are
// sanitized first, an "id" column sets the document id. Chunks are uploaded
// independently; on failure the remaining chunks are skipped and the uploaded
// ones stay indexed.
func (b *Bulker) Index(ctx context.Context, loc *elastic.Locator, f *frame.Frame) error {
	if f == nil || f.Len() == 0 {
		return nil
	}

	data := f.Sanitized()
	if err := checkIDs(data); err != nil {
		return fmt.Errorf("indexing into %s: %w", loc, err)
	}
	chunks := data.Chunks(b.chunkBytes)
	log := b.log.WithFields(logrus.Fields{"index": loc.Index(), "rows": data.Len(), "chunks": len(chunks)})
	log.Debug("indexing frame")

	err := b.run(ctx, len(chunks), func(ctx context.Context, n int) error {
		chunk := chunks[n]
		if err := b.upload(ctx, n, func(p *payload) error {
			return writeIndexActions(p, loc, chunk)
		}); err != nil {
			return err
		}
		b.report(chunk.Len())
		return nil
	})
	if err != nil {
		return fmt.Errorf("indexing into %s: %w", loc, err)
	}

	log.Info("frame indexed")
	return nil
}

func (b *Bulker) report(rows int) {
	if b.progress != nil {
		b.progress(rows)
	}
}

// run calls job for 0..jobs-1 with at most b.workers in flight. The first
// failure cancels the jobs that have not started yet.
func (b *Bulker) run(ctx context.Context, jobs int, job func(ctx context.Context, n int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for n := 0; n < jobs; n++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return job(gctx, n)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// upload stages one chunk with write and sends it as a single bulk request. The
// staged payload is removed on every return path.
func (b *Bulker) upload(ctx context.Context, n int, write func(*payload) error) error {
	p, err := newPayload(b.stagingDir)
	if err != nil {
		return fmt.Errorf("bulk chunk %d: %w", n, err)
	}
	defer func() {
		if err := p.remove(); err != nil {
			b.log.WithError(err).WithField("chunk", n).Warn("removing staged bulk payload failed")
		}
	}()

	if err := write(p); err != nil {
		return fmt.Errorf("bulk chunk %d: %w", n, err)
	}
	body, size, err := p.reader()
	if err != nil {
		return fmt.Errorf("bulk chunk %d: %w", n, err)
	}

	req, err := elastic.NewRequest(ctx, http.MethodPut, "/_bulk", nil, body, elastic.ContentTypeNDJSON)
	if err != nil {
		return err
	}
	req.ContentLength = size

	raw, err := elastic.Do(b.transport, req)
	if err != nil {
		return fmt.Errorf("bulk chunk %d: %w", n, err)
	}
	b.log.WithFields(logrus.Fields{"chunk": n, "bytes": size}).Debug("bulk chunk uploaded")

	return checkItems(n, raw)
}

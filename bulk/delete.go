package bulk

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pteich/elastic-frame/elastic"
	"github.com/pteich/elastic-frame/indices"
	"github.com/pteich/elastic-frame/query"
)

// Approval confirms a destructive operation.
type Approval string

const Approved Approval = "approved"

// DeleteAll removes every document of loc. Without a document type the whole
// index is deleted, otherwise the ids of the type are resolved by scrolling
// and deleted in bulk. Nothing is sent unless approval is Approved.
func (b *Bulker) DeleteAll(ctx context.Context, loc *elastic.Locator, approval Approval) error {
	if approval != Approved {
		return fmt.Errorf("%w: deleting all documents of %s", elastic.ErrApprovalRequired, loc)
	}

	if loc.DocType() == "" {
		b.log.WithField("index", loc.Index()).Info("deleting index")
		return indices.Delete(ctx, b.transport, loc)
	}

	matchAll, err := query.NewQuery(`{"match_all":{}}`)
	if err != nil {
		return err
	}
	ids, err := b.searcher.IDs(ctx, loc, matchAll)
	if err != nil {
		return fmt.Errorf("resolving ids of %s: %w", loc, err)
	}
	return b.DeleteIDs(ctx, loc, ids)
}

// DeleteIDs deletes the given documents. Delete actions are grouped into
// requests of at most the configured chunk size.
func (b *Bulker) DeleteIDs(ctx context.Context, loc *elastic.Locator, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var batches [][]byte
	var current []byte
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty document id", elastic.ErrInvalidArgument)
		}
		line, err := deleteAction(loc, id)
		if err != nil {
			return err
		}
		if len(current) > 0 && int64(len(current)+len(line)) > b.chunkBytes {
			batches = append(batches, current)
			current = nil
		}
		current = append(current, line...)
	}
	batches = append(batches, current)

	log := b.log.WithFields(logrus.Fields{"index": loc.Index(), "ids": len(ids), "chunks": len(batches)})
	log.Debug("deleting documents")

	err := b.run(ctx, len(batches), func(ctx context.Context, n int) error {
		return b.upload(ctx, n, func(p *payload) error {
			_, err := p.Write(batches[n])
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", loc, err)
	}

	log.Info("documents deleted")
	return nil
}

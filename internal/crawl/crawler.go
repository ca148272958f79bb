// Package crawl runs the document builder over a set of content items and
// commits the resulting documents to an index.
package crawl

import (
	"context"
	stderrors "errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fieldcrawl/internal/builder"
	"github.com/Aman-CERP/fieldcrawl/internal/content"
	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
	"github.com/Aman-CERP/fieldcrawl/internal/policy"
	"github.com/Aman-CERP/fieldcrawl/internal/store"
)

// revisioned is implemented by items that carry a revision stamp.
type revisioned interface {
	Revision() string
}

// Options configures a Crawler.
type Options struct {
	Engine *builder.Engine
	Index  store.Index
	Policy *policy.Policy

	// Workers is the number of items built concurrently (0 = NumCPU).
	Workers int

	// Cache skips items whose revision was already committed. Optional.
	Cache *RevisionCache

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnProgress is called after each item, serialised. Optional.
	OnProgress func(ProgressSnapshot)
}

// Crawler builds and commits documents.
type Crawler struct {
	engine  *builder.Engine
	index   store.Index
	policy  *policy.Policy
	workers int
	cache   *RevisionCache
	logger  *slog.Logger

	onProgress func(ProgressSnapshot)
}

// New creates a Crawler.
func New(opts Options) (*Crawler, error) {
	if opts.Engine == nil || opts.Index == nil {
		return nil, crawlerrors.ValidationError("crawler requires an engine and an index", nil)
	}
	if opts.Policy == nil {
		return nil, crawlerrors.New(crawlerrors.ErrCodeInvalidPolicy, "crawler requires a policy", nil)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		engine:  opts.Engine,
		index:   opts.Index,
		policy:  opts.Policy,
		workers: workers,
		cache:   opts.Cache,
		logger:  logger,

		onProgress: opts.OnProgress,
	}, nil
}

// ItemFailure is an item whose document was discarded.
type ItemFailure struct {
	ItemID string
	Err    error
}

// Summary reports the outcome of one Run.
type Summary struct {
	Items         int
	Crawled       int
	Unchanged     int
	Failed        int
	FieldsAdded   int
	FieldsSkipped int
	// Swallowed counts field failures that were logged and ignored.
	Swallowed int
	Failures  []ItemFailure
	Duration  time.Duration
}

// OK reports whether every item was crawled or unchanged.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// Run builds a document for every item and commits each successful one.
// A failed item is logged, counted and its document discarded; the crawl
// continues with the remaining items. Run returns an error only when ctx is
// cancelled, together with the partial summary.
func (c *Crawler) Run(ctx context.Context, items []content.Item) (*Summary, error) {
	start := time.Now()
	sum := &Summary{Items: len(items)}
	progress := NewProgress(len(items))

	c.logger.Info("crawl_started",
		slog.Int("items", len(items)),
		slog.Int("workers", c.workers),
		slog.Bool("parallel_fields", c.policy.Parallel))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.workers)

dispatch:
	for _, it := range items {
		select {
		case <-ctx.Done():
			break dispatch
		default:
		}

		g.Go(func() error {
			out := c.crawlItem(ctx, it)
			progress.ItemDone(out.err != nil && !out.cancelled)

			mu.Lock()
			defer mu.Unlock()
			sum.add(out)
			if c.onProgress != nil {
				c.onProgress(progress.Snapshot())
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		progress.Finish(StatusCancelled)
		c.logger.Warn("crawl_cancelled",
			slog.Int("crawled", sum.Crawled),
			slog.Int("items", sum.Items))
		return sum, crawlerrors.Cancelled("", err)
	}

	progress.Finish(StatusDone)
	c.logger.Info("crawl_completed",
		slog.Int("crawled", sum.Crawled),
		slog.Int("unchanged", sum.Unchanged),
		slog.Int("failed", sum.Failed),
		slog.Int("fields_added", sum.FieldsAdded),
		slog.Int("fields_swallowed", sum.Swallowed),
		slog.Duration("duration", sum.Duration))
	return sum, nil
}

// itemOutcome is the result of crawling one item.
type itemOutcome struct {
	itemID    string
	unchanged bool
	cancelled bool
	result    *builder.Result
	err       error
}

func (s *Summary) add(out itemOutcome) {
	switch {
	case out.cancelled:
	case out.unchanged:
		s.Unchanged++
	case out.err != nil:
		s.Failed++
		s.Failures = append(s.Failures, ItemFailure{ItemID: out.itemID, Err: out.err})
	default:
		s.Crawled++
	}
	if out.result != nil {
		s.FieldsAdded += len(out.result.Added)
		s.FieldsSkipped += len(out.result.Skipped)
		s.Swallowed += len(out.result.Swallowed)
	}
}

func (c *Crawler) crawlItem(ctx context.Context, it content.Item) itemOutcome {
	id := it.UniqueID()
	out := itemOutcome{itemID: id}

	var rev string
	if r, ok := it.(revisioned); ok {
		rev = r.Revision()
	}
	if c.cache.Unchanged(id, rev) {
		out.unchanged = true
		c.logger.Debug("item_unchanged", slog.String("item_id", id), slog.String("revision", rev))
		return out
	}

	doc := store.NewDocument(id)
	res, err := c.engine.BuildDocumentFields(ctx, it, doc, c.policy)
	if err != nil {
		out.err = err
		if crawlerrors.GetCode(err) == crawlerrors.ErrCodeBuildCancelled {
			out.cancelled = true
			return out
		}
		c.logItemFailure(id, err)
		return out
	}
	out.result = res

	if err := c.index.Commit(ctx, doc); err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			out.err = crawlerrors.Cancelled(id, err)
			out.cancelled = true
			return out
		}
		out.err = crawlerrors.New(crawlerrors.ErrCodeIndexWrite, "failed to commit document", err).
			WithDetail("item_id", id)
		c.logItemFailure(id, out.err)
		return out
	}

	c.cache.Remember(id, rev)
	c.logger.Debug("item_crawled",
		slog.String("item_id", id),
		slog.Int("fields", doc.Len()),
		slog.Int("skipped", len(res.Skipped)))
	return out
}

func (c *Crawler) logItemFailure(id string, err error) {
	attrs := crawlerrors.LogAttrs(err)
	hasID := false
	for _, a := range attrs {
		if a.Key == "item_id" {
			hasID = true
			break
		}
	}
	if !hasID {
		attrs = append([]slog.Attr{slog.String("item_id", id)}, attrs...)
	}
	c.logger.LogAttrs(context.Background(), slog.LevelError, "item_failed", attrs...)
}

// Remove deletes documents for items that no longer exist and forgets their
// revisions.
func (c *Crawler) Remove(ctx context.Context, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	for _, id := range itemIDs {
		c.cache.Forget(id)
	}
	if err := c.index.Delete(ctx, itemIDs...); err != nil {
		return crawlerrors.New(crawlerrors.ErrCodeIndexWrite, "failed to delete documents", err)
	}
	c.logger.Info("items_removed", slog.Int("count", len(itemIDs)))
	return nil
}

// Items converts memory items to the content.Item interface.
func Items[T content.Item](in []T) []content.Item {
	out := make([]content.Item, len(in))
	for i, it := range in {
		out[i] = it
	}
	return out
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fieldcrawl/internal/builder"
	"github.com/Aman-CERP/fieldcrawl/internal/content"
	"github.com/Aman-CERP/fieldcrawl/internal/crawl"
	"github.com/Aman-CERP/fieldcrawl/internal/diag"
	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
	"github.com/Aman-CERP/fieldcrawl/internal/source"
	"github.com/Aman-CERP/fieldcrawl/internal/store"
	"github.com/Aman-CERP/fieldcrawl/internal/ui"
)

// crawlOptions holds CLI flags for crawl.
type crawlOptions struct {
	watch       bool
	parallel    bool
	stopOnError bool
	backend     string
	format      string // "text", "json"
}

func newCrawlCmd(flags *rootFlags) *cobra.Command {
	var opts crawlOptions

	cmd := &cobra.Command{
		Use:   "crawl [paths...]",
		Short: "Build index documents from item files",
		Long: `Crawl loads content items from YAML or JSON item files and writes one
document per item into the index. Directories are searched recursively.
With no paths the project directory is crawled.

An item whose document fails to build is not committed; the failure is
listed in the summary and the command exits non-zero.

Examples:
  fieldcrawl crawl
  fieldcrawl crawl items/ --parallel
  fieldcrawl crawl items/products.yaml --stop-on-error
  fieldcrawl crawl items/ --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd.Context(), cmd, flags, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep running and recrawl item files as they change")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "Process the fields of each item concurrently")
	cmd.Flags().BoolVar(&opts.stopOnError, "stop-on-error", false, "Fail an item's document on its first field error")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Index backend: bleve or sqlite (overrides config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Summary format: text, json")

	return cmd
}

// session is an open index with a crawler bound to it.
type session struct {
	project *project
	lock    *crawl.IndexLock
	index   store.Index
	crawler *crawl.Crawler
	cache   *crawl.RevisionCache
	close   func()
}

// openSession takes the crawl lock and opens the index.
func openSession(p *project, progress *ui.ProgressPrinter) (*session, error) {
	cfg := p.cfg

	lock := crawl.NewIndexLock(cfg.DataDir())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}

	idx, err := p.openIndex()
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	engine := builder.NewEngine(builder.Options{
		Sink:                  diag.NewSlogSink(p.logger),
		FieldLanguageFallback: cfg.Index.FieldLanguageFallback,
	})
	cache := crawl.NewRevisionCache(cfg.Crawl.RevisionCacheSize)

	crawler, err := crawl.New(crawl.Options{
		Engine:     engine,
		Index:      idx,
		Policy:     cfg.Policy(),
		Workers:    cfg.Crawl.ItemWorkers,
		Cache:      cache,
		Logger:     p.logger,
		OnProgress: progress.Update,
	})
	if err != nil {
		_ = idx.Close()
		_ = lock.Release()
		return nil, err
	}

	return &session{
		project: p,
		lock:    lock,
		index:   idx,
		crawler: crawler,
		cache:   cache,
		close: func() {
			if err := idx.Close(); err != nil {
				p.logger.Warn("index_close_failed", slog.String("error", err.Error()))
			}
			_ = lock.Release()
		},
	}, nil
}

func runCrawl(ctx context.Context, cmd *cobra.Command, flags *rootFlags, paths []string, opts crawlOptions) error {
	p, err := openProject(cmd, flags)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := applyCrawlFlags(cmd, p, opts); err != nil {
		return err
	}
	if len(paths) == 0 {
		paths = []string{p.dir}
	}

	uiCfg := ui.NewConfig(cmd.OutOrStdout())
	progress := ui.NewProgressPrinter(cmd.ErrOrStderr())

	s, err := openSession(p, progress)
	if err != nil {
		return err
	}
	defer s.close()

	tracked, items, err := loadTracked(paths)
	if err != nil {
		return err
	}

	sum, runErr := s.crawler.Run(ctx, items)
	progress.Done()
	if err := renderSummary(uiCfg, opts.format, sum); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	if opts.watch {
		return runWatch(ctx, cmd, s, paths, tracked, opts)
	}
	if !sum.OK() {
		return fmt.Errorf("%d item(s) failed", sum.Failed)
	}
	return nil
}

// applyCrawlFlags lets explicitly set flags override the loaded config.
func applyCrawlFlags(cmd *cobra.Command, p *project, opts crawlOptions) error {
	cfg := p.cfg
	if cmd.Flags().Changed("parallel") {
		cfg.Crawl.Parallel = opts.parallel
	}
	if cmd.Flags().Changed("stop-on-error") {
		cfg.Crawl.StopOnFieldError = opts.stopOnError
	}
	if opts.backend != "" {
		cfg.Index.Backend = opts.backend
	}
	if opts.format != "text" && opts.format != "json" {
		return crawlerrors.ValidationError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}
	return cfg.Validate()
}

func renderSummary(cfg ui.Config, format string, sum *crawl.Summary) error {
	if sum == nil {
		return nil
	}
	r := ui.NewSummaryRenderer(cfg)
	if format == "json" {
		return r.RenderJSON(sum)
	}
	r.Render(sum)
	return nil
}

// trackedFiles maps each absolute item file path to the item ids it
// declared when last loaded.
type trackedFiles map[string][]string

// loadTracked loads every item file under paths and records which ids came
// from which file.
func loadTracked(paths []string) (trackedFiles, []content.Item, error) {
	files, err := source.ExpandPaths(paths...)
	if err != nil {
		return nil, nil, err
	}

	tracked := make(trackedFiles, len(files))
	var items []content.Item
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		loaded, err := source.LoadFile(abs)
		if err != nil {
			return nil, nil, err
		}
		tracked[abs] = itemIDs(loaded)
		items = append(items, crawl.Items(loaded)...)
	}
	return tracked, items, nil
}

func itemIDs(items []*content.MemoryItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.UniqueID()
	}
	return ids
}

// isCancelled reports whether err comes from a cancelled context.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) ||
		crawlerrors.GetCode(err) == crawlerrors.ErrCodeBuildCancelled
}

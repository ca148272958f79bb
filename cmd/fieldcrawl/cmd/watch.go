package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fieldcrawl/internal/content"
	"github.com/Aman-CERP/fieldcrawl/internal/crawl"
	"github.com/Aman-CERP/fieldcrawl/internal/output"
	"github.com/Aman-CERP/fieldcrawl/internal/source"
	"github.com/Aman-CERP/fieldcrawl/internal/ui"
	"github.com/Aman-CERP/fieldcrawl/internal/watcher"
)

// runWatch watches paths and recrawls changed item files until ctx is done.
func runWatch(ctx context.Context, cmd *cobra.Command, s *session, paths []string, tracked trackedFiles, opts crawlOptions) error {
	debounce, err := s.project.cfg.WatchDebounce()
	if err != nil {
		return err
	}
	out := output.New(cmd.ErrOrStderr())
	logger := s.project.logger

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []watcher.FileEvent)

	for _, root := range paths {
		w, err := watcher.New(watcher.Options{
			DebounceWindow: debounce,
			Filter:         source.IsItemFile,
		})
		if err != nil {
			return err
		}
		logger.Info("watch_started", slog.String("root", root), slog.String("mode", w.Mode()))

		g.Go(func() error {
			err := w.Start(gctx, root)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			return forwardBatches(gctx, w, batches, logger)
		})
	}

	out.Statusf("", "Watching %d path(s) for changes. Press Ctrl+C to stop.", len(paths))

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case batch := <-batches:
				sum, err := applyBatch(gctx, s, tracked, batch)
				if err != nil {
					if isCancelled(err) {
						return nil
					}
					return err
				}
				if sum != nil && sum.Items > 0 {
					if err := renderSummary(ui.NewConfig(cmd.OutOrStdout()), opts.format, sum); err != nil {
						return err
					}
				}
			}
		}
	})

	err = g.Wait()
	logger.Info("watch_stopped")
	return err
}

// forwardBatches relays one watcher's batches and logs its errors.
func forwardBatches(ctx context.Context, w *watcher.ItemWatcher, batches chan<- []watcher.FileEvent, logger *slog.Logger) error {
	defer func() { _ = w.Stop() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			logger.Warn("watch_error", slog.String("error", err.Error()))
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			select {
			case batches <- batch:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// applyBatch reloads changed files, removes documents of deleted items and
// recrawls the rest.
func applyBatch(ctx context.Context, s *session, tracked trackedFiles, batch []watcher.FileEvent) (*crawl.Summary, error) {
	logger := s.project.logger
	var (
		removed []string
		items   []content.Item
	)

	for _, ev := range batch {
		previous := tracked[ev.Path]

		if ev.Operation == watcher.OpDelete {
			delete(tracked, ev.Path)
			removed = append(removed, previous...)
			continue
		}

		loaded, err := source.LoadFile(ev.Path)
		if err != nil {
			// Keep the last good documents until the file parses again.
			logger.Warn("item_file_invalid",
				slog.String("path", ev.Path),
				slog.String("error", err.Error()))
			continue
		}
		ids := itemIDs(loaded)
		tracked[ev.Path] = ids
		removed = append(removed, missing(previous, ids)...)
		items = append(items, crawl.Items(loaded)...)
	}

	if len(removed) > 0 {
		if err := s.crawler.Remove(ctx, removed...); err != nil {
			return nil, fmt.Errorf("remove documents: %w", err)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	return s.crawler.Run(ctx, items)
}

// missing returns ids in before that are absent from after, sorted.
func missing(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, id := range after {
		keep[id] = struct{}{}
	}
	var out []string
	for _, id := range before {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

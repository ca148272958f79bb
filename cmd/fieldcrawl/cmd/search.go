package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
	"github.com/Aman-CERP/fieldcrawl/internal/store"
	"github.com/Aman-CERP/fieldcrawl/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	field  string
	format string // "text", "json"
}

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the crawled index",
		Long: `Search the index built by 'fieldcrawl crawl'.

Every query term must match. --field restricts matching to one field,
named as in the item files (case and spacing are normalised).

Examples:
  fieldcrawl search "red widget"
  fieldcrawl search widget --field Title --limit 5
  fieldcrawl search widget --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, flags, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.field, "field", "", "Only match within this field")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, flags *rootFlags, query string, opts searchOptions) error {
	if strings.TrimSpace(query) == "" {
		return crawlerrors.New(crawlerrors.ErrCodeQueryEmpty, "search query is empty", nil).
			WithSuggestion("Pass one or more search terms")
	}
	if opts.limit < 1 {
		return crawlerrors.ValidationError(fmt.Sprintf("limit must be at least 1, got %d", opts.limit), nil)
	}

	p, err := openProject(cmd, flags)
	if err != nil {
		return err
	}
	defer p.Close()

	if !p.indexExists() {
		return crawlerrors.New(crawlerrors.ErrCodeIndexOpen, "no index found", nil).
			WithDetail("path", p.cfg.IndexPath()).
			WithSuggestion("Run 'fieldcrawl crawl' first")
	}
	if p.cfg.Backend() == store.BackendBleve && p.crawlerBusy() {
		return crawlerrors.New(crawlerrors.ErrCodeIndexLocked, "index is being written by another crawler", nil).
			WithSuggestion("Use the sqlite backend to search while crawling")
	}

	idx, err := p.openIndex()
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	p.logger.Debug("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	hits, err := idx.Search(ctx, query, store.SearchOptions{Limit: opts.limit, Field: opts.field})
	if err != nil {
		return crawlerrors.New(crawlerrors.ErrCodeSearchFailed, "search failed", err)
	}
	p.logger.Debug("search_complete", slog.Int("results", len(hits)))

	r := ui.NewHitsRenderer(ui.NewConfig(cmd.OutOrStdout()))
	if opts.format == "json" {
		return r.RenderJSON(hits)
	}
	r.Render(query, hits)
	return nil
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fieldcrawl/internal/config"
	"github.com/Aman-CERP/fieldcrawl/internal/crawl"
	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
	"github.com/Aman-CERP/fieldcrawl/internal/logging"
	"github.com/Aman-CERP/fieldcrawl/internal/store"
)

// project is the loaded configuration and logger of one command run.
type project struct {
	dir     string
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// openProject loads the layered config for --dir and sets up logging from
// its logging section. With --debug the debug logger is reused.
func openProject(cmd *cobra.Command, flags *rootFlags) (*project, error) {
	dir, err := filepath.Abs(flags.dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	p := &project{dir: dir, cfg: cfg, cleanup: func() {}}
	if flags.debug {
		p.logger = slog.Default()
		return p, nil
	}

	lc := cfg.LoggingSetup(false)
	lc.Stderr = cmd.ErrOrStderr()
	logger, cleanup, err := logging.Setup(lc)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	p.logger = logger
	p.cleanup = cleanup
	return p, nil
}

// Close releases the project logger.
func (p *project) Close() {
	p.cleanup()
}

// indexExists reports whether the configured index is on disk.
func (p *project) indexExists() bool {
	_, err := os.Stat(p.cfg.IndexPath())
	return err == nil
}

// openIndex opens the configured index backend.
func (p *project) openIndex() (store.Index, error) {
	idx, err := store.NewIndex(p.cfg.Backend(), p.cfg.IndexPath())
	if err != nil {
		return nil, crawlerrors.New(crawlerrors.ErrCodeIndexOpen, "failed to open index", err).
			WithDetail("path", p.cfg.IndexPath()).
			WithDetail("backend", string(p.cfg.Backend()))
	}
	return idx, nil
}

// crawlerBusy reports whether another process holds the crawl lock.
func (p *project) crawlerBusy() bool {
	lock := crawl.NewIndexLock(p.cfg.DataDir())
	if err := lock.Acquire(); err != nil {
		return crawlerrors.GetCode(err) == crawlerrors.ErrCodeIndexLocked
	}
	_ = lock.Release()
	return false
}

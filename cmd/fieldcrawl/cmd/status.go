package cmd

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fieldcrawl/internal/store"
	"github.com/Aman-CERP/fieldcrawl/internal/ui"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Long:  `Show the configured index backend, its location, document count and size.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, flags, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, flags *rootFlags, jsonOutput bool) error {
	p, err := openProject(cmd, flags)
	if err != nil {
		return err
	}
	defer p.Close()

	info := ui.StatusInfo{
		Backend: string(p.cfg.Backend()),
		Path:    p.cfg.IndexPath(),
		Exists:  p.indexExists(),
	}
	if info.Exists {
		info.SizeBytes = diskUsage(info.Path)
		info.Locked = p.crawlerBusy()
		// A bleve index cannot be opened while a crawler holds it.
		if !info.Locked || p.cfg.Backend() != store.BackendBleve {
			idx, err := p.openIndex()
			if err != nil {
				return err
			}
			info.Documents, err = idx.Count()
			_ = idx.Close()
			if err != nil {
				return err
			}
		}
	}

	r := ui.NewStatusRenderer(ui.NewConfig(cmd.OutOrStdout()))
	if jsonOutput {
		return r.RenderJSON(info)
	}
	r.Render(info)
	return nil
}

// diskUsage sums file sizes under path, which may be a file or directory.
func diskUsage(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	if info, err := os.Stat(path + "-wal"); err == nil {
		total += info.Size()
	}
	return total
}

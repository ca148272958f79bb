package crawl

import (
	"sync"
	"time"
)

// Status is the state of a crawl.
type Status string

const (
	// StatusCrawling indicates items are being built.
	StatusCrawling Status = "crawling"
	// StatusDone indicates the crawl finished.
	StatusDone Status = "done"
	// StatusCancelled indicates the crawl stopped early.
	StatusCancelled Status = "cancelled"
)

// ProgressSnapshot is an immutable snapshot of crawl progress.
type ProgressSnapshot struct {
	Status         string  `json:"status"`
	ItemsTotal     int     `json:"items_total"`
	ItemsProcessed int     `json:"items_processed"`
	ItemsFailed    int     `json:"items_failed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
}

// Progress tracks a running crawl. Safe for concurrent use.
type Progress struct {
	mu sync.RWMutex

	status    Status
	total     int
	processed int
	failed    int
	startTime time.Time
}

// NewProgress creates a tracker for total items.
func NewProgress(total int) *Progress {
	return &Progress{
		status:    StatusCrawling,
		total:     total,
		startTime: time.Now(),
	}
}

// ItemDone records one processed item.
func (p *Progress) ItemDone(failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
	if failed {
		p.failed++
	}
}

// Finish sets the final status.
func (p *Progress) Finish(status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

// Snapshot returns the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.total > 0 {
		pct = float64(p.processed) / float64(p.total) * 100
	}
	return ProgressSnapshot{
		Status:         string(p.status),
		ItemsTotal:     p.total,
		ItemsProcessed: p.processed,
		ItemsFailed:    p.failed,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
	}
}

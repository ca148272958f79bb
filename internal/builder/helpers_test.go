package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/fieldcrawl/internal/content"
	"github.com/Aman-CERP/fieldcrawl/internal/fallback"
)

// Fixed ids so tests can reference fields by id as well as by name.
var (
	idA = content.MustParseFieldID("{0DE95AE4-41AB-4D01-9EB0-67441B7C2450}")
	idB = content.MustParseFieldID("{A60ACD61-A6DB-4182-8329-C957982CEC74}")
	idC = content.MustParseFieldID("{C8F93AFE-BFD4-4E8F-9C61-152559854661}")
	idD = content.MustParseFieldID("{52807595-0F8F-4B20-8D2A-CB71D28C6103}")
)

// recordingWriter is a DocumentWriter that remembers every add.
type recordingWriter struct {
	mu       sync.Mutex
	added    []string
	calls    map[string]int
	failOn   map[string]error
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	fallback map[string]bool
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{
		calls:    make(map[string]int),
		failOn:   make(map[string]error),
		fallback: make(map[string]bool),
	}
}

func (w *recordingWriter) failing(name string) *recordingWriter {
	w.failOn[name] = fmt.Errorf("cannot serialize %s", name)
	return w
}

func (w *recordingWriter) AddField(ctx context.Context, f content.Field) error {
	n := w.inFlight.Add(1)
	defer w.inFlight.Add(-1)
	for {
		p := w.peak.Load()
		if n <= p || w.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if w.delay > 0 {
		time.Sleep(w.delay)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls[f.Name()]++
	w.fallback[f.Name()] = fallback.Enabled(ctx)
	if err, ok := w.failOn[f.Name()]; ok {
		return err
	}
	w.added = append(w.added, f.Name())
	return nil
}

func (w *recordingWriter) names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.added))
	copy(out, w.added)
	return out
}

func (w *recordingWriter) callCount(name string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[name]
}

func (w *recordingWriter) totalCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, n := range w.calls {
		total += n
	}
	return total
}

// recordingSink captures diagnostics.
type recordingSink struct {
	mu     sync.Mutex
	debugs []string
	fatals []string
}

func (s *recordingSink) Debug(_ context.Context, msg func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugs = append(s.debugs, msg())
}

func (s *recordingSink) Fatal(_ context.Context, msg string, err error, attrs ...slog.Attr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := msg
	for _, a := range attrs {
		line += " " + a.String()
	}
	if err != nil {
		line += " error=" + err.Error()
	}
	s.fatals = append(s.fatals, line)
}

func (s *recordingSink) debugLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.debugs...)
}

func (s *recordingSink) fatalLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fatals...)
}

// threeFieldItem returns an item with Title, Body and Hidden declared.
// Only Title and Body are loaded up front.
func threeFieldItem() *content.MemoryItem {
	return content.NewMemoryItem("item-1").
		Declare(content.NewMemoryField(idA, "Title", "single-line text", "Hello"), true).
		Declare(content.NewMemoryField(idB, "Body", "rich text", "World"), true).
		Declare(content.NewMemoryField(idC, "Hidden", "single-line text", "secret"), false)
}

func newTestEngine(sink *recordingSink) (*Engine, *fallback.ContextSwitcher) {
	sw := fallback.NewSwitcher()
	return NewEngine(Options{Sink: sink, Switcher: sw, FieldLanguageFallback: true}), sw
}

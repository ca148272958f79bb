// Package builder selects the fields of a content item that are written into
// a search index document and drives the per-field adds, sequentially or on
// a bounded worker pool.
package builder

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fieldcrawl/internal/content"
	"github.com/Aman-CERP/fieldcrawl/internal/diag"
	"github.com/Aman-CERP/fieldcrawl/internal/errors"
	"github.com/Aman-CERP/fieldcrawl/internal/fallback"
	"github.com/Aman-CERP/fieldcrawl/internal/policy"
)

// DocumentWriter receives the admitted fields of one document.
// AddField must be safe for concurrent calls when parallel builds are used.
type DocumentWriter interface {
	AddField(ctx context.Context, f content.Field) error
}

// Options configures an Engine.
type Options struct {
	// Sink receives skip decisions and swallowed failures.
	// Defaults to a SlogSink over slog.Default().
	Sink diag.Sink

	// Switcher scopes the language-fallback mode around each add.
	// Defaults to fallback.NewSwitcher().
	Switcher fallback.Switcher

	// FieldLanguageFallback is the index-level fallback setting applied
	// inside each add scope.
	FieldLanguageFallback bool
}

// Engine builds document fields. It holds no per-build state; one Engine
// may serve concurrent builds.
type Engine struct {
	sink          diag.Sink
	switcher      fallback.Switcher
	fieldFallback bool
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	sink := opts.Sink
	if sink == nil {
		sink = diag.NewSlogSink(nil)
	}
	switcher := opts.Switcher
	if switcher == nil {
		switcher = fallback.NewSwitcher()
	}
	return &Engine{
		sink:          sink,
		switcher:      switcher,
		fieldFallback: opts.FieldLanguageFallback,
	}
}

// Skip records one rejected field.
type Skip struct {
	FieldID   content.FieldID
	FieldName string
	Reason    SkipReason
}

// Result describes a completed build.
type Result struct {
	ItemID string

	// Added lists the ids of fields written to the document, in completion
	// order.
	Added []content.FieldID

	// Skipped lists fields rejected by the admission check.
	Skipped []Skip

	// Swallowed lists add failures that were logged and ignored because
	// the policy does not stop on field errors.
	Swallowed []*errors.FieldAddError
}

// build carries the state of one BuildDocumentFields call.
type build struct {
	engine *Engine
	item   content.Item
	doc    DocumentWriter
	policy *policy.Policy

	mu     sync.Mutex
	result Result
}

// BuildDocumentFields writes the admitted fields of it into doc under p.
//
// When p.IndexAllFields is set the item's fields are loaded first. Loaded
// fields are processed, then, when an include list is in force and not all
// fields are indexed, included ids that were not loaded are resolved through
// the item and processed too. A field is added at most once.
//
// Failure handling follows p.StopOnFieldError in both modes. When it is
// false every add failure is logged at FATAL level, recorded in
// Result.Swallowed and the build succeeds. When it is true a sequential
// build returns the first *errors.FieldAddError without touching later
// fields, while a parallel build lets every sibling in the phase finish and
// then returns an *errors.AggregateFieldError. A cancelled context stops
// dispatch and yields an ERR_601_BUILD_CANCELLED error.
func (e *Engine) BuildDocumentFields(ctx context.Context, it content.Item, doc DocumentWriter, p *policy.Policy) (*Result, error) {
	if it == nil {
		return nil, errors.ValidationError("content item is required", nil)
	}
	if doc == nil {
		return nil, errors.ValidationError("document writer is required", nil)
	}
	if p == nil {
		return nil, errors.New(errors.ErrCodeInvalidPolicy, "policy is required", nil)
	}

	b := &build{
		engine: e,
		item:   it,
		doc:    doc,
		policy: p,
		result: Result{ItemID: it.UniqueID()},
	}

	e.sink.Debug(ctx, func() string { return "build fields start: " + it.UniqueID() })
	defer e.sink.Debug(ctx, func() string { return "build fields end: " + it.UniqueID() })

	if p.IndexAllFields {
		it.LoadAllFields()
	}

	loaded, loadedIDs := dedupe(it.Fields())

	var candidates []string
	if !p.IndexAllFields && p.HasIncludedFields() {
		candidates = p.Included.Without(loadedIDs)
	}

	if p.Parallel {
		if err := b.parallelPhase(ctx, len(loaded), func(ctx context.Context, i int) error {
			return b.checkAndAdd(ctx, loaded[i])
		}); err != nil {
			return nil, err
		}
		if err := b.parallelPhase(ctx, len(candidates), func(ctx context.Context, i int) error {
			f, ok := b.resolve(candidates[i])
			if !ok {
				return nil
			}
			return b.checkAndAdd(ctx, f)
		}); err != nil {
			return nil, err
		}
		return &b.result, nil
	}

	for _, f := range loaded {
		if ctx.Err() != nil {
			return nil, errors.Cancelled(it.UniqueID(), ctx.Err())
		}
		if err := b.checkAndAdd(ctx, f); err != nil {
			return nil, err
		}
	}
	for _, key := range candidates {
		if ctx.Err() != nil {
			return nil, errors.Cancelled(it.UniqueID(), ctx.Err())
		}
		f, ok := b.resolve(key)
		if !ok {
			continue
		}
		if err := b.checkAndAdd(ctx, f); err != nil {
			return nil, err
		}
	}

	return &b.result, nil
}

// parallelPhase runs work for indices [0, n) on at most Degree() workers.
// Errors returned by work are collected, never short-circuiting siblings.
func (b *build) parallelPhase(ctx context.Context, n int, work func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		failed []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.policy.ParallelOptions.Degree())

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := work(gctx, i); err != nil {
				mu.Lock()
				failed = append(failed, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return errors.Cancelled(b.item.UniqueID(), ctx.Err())
	}
	if len(failed) > 0 {
		return errors.NewAggregateFieldError(b.item.UniqueID(), failed)
	}
	return nil
}

// resolve turns an included key that was not loaded into a field.
// Malformed ids, unknown ids and fields invalid for indexing are skipped.
func (b *build) resolve(key string) (content.Field, bool) {
	id, ok := content.ParseFieldID(key)
	if !ok {
		return nil, false
	}
	f, ok := b.item.FieldByID(id)
	if !ok || !content.ValidForIndexing(f) {
		return nil, false
	}
	return f, true
}

// checkAndAdd runs the admission check and adds an admitted field.
func (b *build) checkAndAdd(ctx context.Context, f content.Field) error {
	d := Admit(b.item, f, b.policy)
	if !d.Admitted {
		b.engine.sink.Debug(ctx, func() string { return describe(f, d.Reason) })
		b.mu.Lock()
		b.result.Skipped = append(b.result.Skipped, Skip{FieldID: f.ID(), FieldName: f.Name(), Reason: d.Reason})
		b.mu.Unlock()
		return nil
	}

	if err := b.add(ctx, f); err != nil {
		fe := errors.NewFieldAddError(b.item.UniqueID(), f.ID().String(), f.Name(), err)
		if b.policy.StopOnFieldError {
			return fe
		}
		b.engine.sink.Fatal(ctx, "could not add field", err,
			slog.String("item_id", fe.ItemID),
			slog.String("field_id", fe.FieldID),
			slog.String("field_name", fe.FieldName))
		b.mu.Lock()
		b.result.Swallowed = append(b.result.Swallowed, fe)
		b.mu.Unlock()
		return nil
	}

	b.mu.Lock()
	b.result.Added = append(b.result.Added, f.ID())
	b.mu.Unlock()
	return nil
}

// add writes f inside a fallback scope that is released on every path,
// including a panicking writer.
func (b *build) add(ctx context.Context, f content.Field) error {
	scoped, release := b.engine.switcher.Enter(ctx, b.engine.fieldFallback)
	defer release()
	return b.doc.AddField(scoped, f)
}

// dedupe drops repeated ids from fields, keeping the first occurrence, and
// returns the set of canonical ids seen.
func dedupe(fields []content.Field) ([]content.Field, map[string]struct{}) {
	ids := make(map[string]struct{}, len(fields))
	out := make([]content.Field, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			continue
		}
		key := f.ID().String()
		if _, seen := ids[key]; seen {
			continue
		}
		ids[key] = struct{}{}
		out = append(out, f)
	}
	return out, ids
}

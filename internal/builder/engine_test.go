package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fieldcrawl/internal/content"
	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
	"github.com/Aman-CERP/fieldcrawl/internal/policy"
)

func TestBuildDocumentFields_IndexAllFields_LoadsOnceAndExcludesHidden(t *testing.T) {
	// Given: an item with Hidden declared but not loaded
	item := threeFieldItem()
	doc := newRecordingWriter()
	sink := &recordingSink{}
	engine, _ := newTestEngine(sink)

	p := &policy.Policy{
		IndexAllFields: true,
		Excluded:       policy.NewKeySet("Hidden"),
	}

	// When: building with index-all
	res, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	// Then: fields were loaded exactly once and Hidden is not indexed
	require.NoError(t, err)
	assert.Equal(t, 1, item.LoadAllCalls())
	assert.ElementsMatch(t, []string{"Title", "Body"}, doc.names())
	assert.Equal(t, 0, doc.callCount("Hidden"))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, ReasonGloballyExcluded, res.Skipped[0].Reason)
}

func TestBuildDocumentFields_IndexAllFields_AddsFieldsLoadedOnDemand(t *testing.T) {
	item := threeFieldItem()
	doc := newRecordingWriter()
	engine, _ := newTestEngine(&recordingSink{})

	_, err := engine.BuildDocumentFields(context.Background(), item, doc, &policy.Policy{IndexAllFields: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"Title", "Body", "Hidden"}, doc.names())
}

func TestBuildDocumentFields_WithoutIndexAll_DoesNotLoadFields(t *testing.T) {
	item := threeFieldItem()
	engine, _ := newTestEngine(&recordingSink{})

	_, err := engine.BuildDocumentFields(context.Background(), item, newRecordingWriter(),
		&policy.Policy{Included: policy.NewKeySet("Title")})

	require.NoError(t, err)
	assert.Equal(t, 0, item.LoadAllCalls())
}

func TestBuildDocumentFields_TemplateExclusion_OnlyForTemplates(t *testing.T) {
	tests := []struct {
		name     string
		template bool
		expected []string
	}{
		{name: "template item", template: true, expected: []string{"B"}},
		{name: "regular item", template: false, expected: []string{"A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: fields A and B with A excluded for templates
			item := content.NewMemoryItem("tpl").AsTemplate(tt.template).
				Declare(content.NewMemoryField(idA, "A", "text", "a"), true).
				Declare(content.NewMemoryField(idB, "B", "text", "b"), true)
			doc := newRecordingWriter()
			engine, _ := newTestEngine(&recordingSink{})

			p := &policy.Policy{
				IndexAllFields:   true,
				ExcludedTemplate: policy.NewKeySet("A"),
			}

			// When
			_, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

			// Then
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, doc.names())
		})
	}
}

func TestBuildDocumentFields_TemplateExclusion_MatchesByID(t *testing.T) {
	item := content.NewMemoryItem("tpl").AsTemplate(true).
		Declare(content.NewMemoryField(idA, "A", "text", "a"), true).
		Declare(content.NewMemoryField(idB, "B", "text", "b"), true)
	doc := newRecordingWriter()
	engine, _ := newTestEngine(&recordingSink{})

	// Lowercase, unbraced form of A's id
	p := &policy.Policy{
		IndexAllFields:   true,
		ExcludedTemplate: policy.NewKeySet("0de95ae4-41ab-4d01-9eb0-67441b7c2450"),
	}

	_, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, doc.names())
}

func TestBuildDocumentFields_MediaExclusion_ChecksNameOnly(t *testing.T) {
	tests := []struct {
		name     string
		media    bool
		excluded string
		expected []string
	}{
		{name: "media item excluded by name", media: true, excluded: "A", expected: []string{"B"}},
		{name: "media item listed by id is kept", media: true, excluded: idA.String(), expected: []string{"A", "B"}},
		{name: "non-media item ignores media list", media: false, excluded: "A", expected: []string{"A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := content.NewMemoryItem("media").AsMedia(tt.media).
				Declare(content.NewMemoryField(idA, "A", "text", "a"), true).
				Declare(content.NewMemoryField(idB, "B", "text", "b"), true)
			doc := newRecordingWriter()
			engine, _ := newTestEngine(&recordingSink{})

			p := &policy.Policy{
				IndexAllFields: true,
				ExcludedMedia:  policy.NewKeySet(tt.excluded),
			}

			_, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, doc.names())
		})
	}
}

func TestBuildDocumentFields_IncludeList_OnlyIncludedIndexed(t *testing.T) {
	// Given: A and B loaded, only B included
	item := content.NewMemoryItem("inc").
		Declare(content.NewMemoryField(idA, "A", "text", "a"), true).
		Declare(content.NewMemoryField(idB, "B", "text", "b"), true)
	doc := newRecordingWriter()
	sink := &recordingSink{}
	engine, _ := newTestEngine(sink)

	// When
	res, err := engine.BuildDocumentFields(context.Background(), item, doc,
		&policy.Policy{Included: policy.NewKeySet("B")})

	// Then: only B indexed, A logged as not included
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, doc.names())
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, idA, res.Skipped[0].FieldID)
	assert.Equal(t, ReasonNotIncluded, res.Skipped[0].Reason)

	found := false
	for _, line := range sink.debugLines() {
		if strings.Contains(line, "name:A") && strings.Contains(line, "not included") {
			found = true
		}
	}
	assert.True(t, found, "expected a not-included debug record for A, got %v", sink.debugLines())
}

func TestBuildDocumentFields_IncludedByID_ResolvesUnloadedField(t *testing.T) {
	// Given: Hidden is declared but not loaded, and is included by id
	item := threeFieldItem()
	doc := newRecordingWriter()
	engine, _ := newTestEngine(&recordingSink{})

	p := &policy.Policy{Included: policy.NewKeySet("Title", idC.String())}

	// When
	res, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	// Then: Title from the loaded set, Hidden resolved by id
	require.NoError(t, err)
	assert.Equal(t, []string{"Title", "Hidden"}, doc.names())
	assert.Equal(t, []content.FieldID{idA, idC}, res.Added)
}

func TestBuildDocumentFields_LoadedAndIncludedByID_AddedOnce(t *testing.T) {
	item := threeFieldItem()
	doc := newRecordingWriter()
	engine, _ := newTestEngine(&recordingSink{})

	// Title is loaded and listed by name and by id in two different forms
	p := &policy.Policy{Included: policy.NewKeySet("Title", idA.String(), "0de95ae441ab4d019eb067441b7c2450")}

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			doc = newRecordingWriter()
			p.Parallel = parallel

			_, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

			require.NoError(t, err)
			assert.Equal(t, 1, doc.callCount("Title"))
			assert.Equal(t, 1, doc.totalCalls())
		})
	}
}

func TestBuildDocumentFields_ExclusionPrecedesInclusion(t *testing.T) {
	item := threeFieldItem()
	doc := newRecordingWriter()
	engine, _ := newTestEngine(&recordingSink{})

	// Title and Hidden are both included and excluded by id
	p := &policy.Policy{
		Included: policy.NewKeySet(idA.String(), idC.String(), "Body"),
		Excluded: policy.NewKeySet(idA.String(), idC.String()),
	}

	res, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	require.NoError(t, err)
	assert.Equal(t, []string{"Body"}, doc.names())
	for _, s := range res.Skipped {
		assert.Equal(t, ReasonGloballyExcluded, s.Reason)
	}
}

func TestBuildDocumentFields_MalformedIncludedKeys_Skipped(t *testing.T) {
	item := threeFieldItem()
	doc := newRecordingWriter()
	engine, _ := newTestEngine(&recordingSink{})

	p := &policy.Policy{Included: policy.NewKeySet("not-a-guid", "{ZZZZ}", "Body", "{}")}

	for _, parallel := range []bool{false, true} {
		doc = newRecordingWriter()
		p.Parallel = parallel
		assert.NotPanics(t, func() {
			_, err := engine.BuildDocumentFields(context.Background(), item, doc, p)
			require.NoError(t, err)
		})
		assert.Equal(t, []string{"Body"}, doc.names())
	}
}

func TestBuildDocumentFields_IncludedByID_SkipsUnknownAndInvalid(t *testing.T) {
	// Given: D declared without a type key, and an id that is not declared
	item := threeFieldItem().
		Declare(content.NewMemoryField(idD, "Broken", "  ", "x"), false)
	unknown := content.NewFieldID()
	doc := newRecordingWriter()
	engine, _ := newTestEngine(&recordingSink{})

	p := &policy.Policy{Included: policy.NewKeySet(idD.String(), unknown.String())}

	// When
	res, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	// Then: neither is added, and no error
	require.NoError(t, err)
	assert.Empty(t, doc.names())
	assert.Empty(t, res.Added)
}

func TestBuildDocumentFields_Sequential_StopOnError_AbortsAtFailingField(t *testing.T) {
	// Given: A, B, C loaded in order with B failing
	item := content.NewMemoryItem("seq").
		Declare(content.NewMemoryField(idA, "A", "text", "a"), true).
		Declare(content.NewMemoryField(idB, "B", "text", "b"), true).
		Declare(content.NewMemoryField(idC, "C", "text", "c"), true)
	doc := newRecordingWriter().failing("B")
	sink := &recordingSink{}
	engine, _ := newTestEngine(sink)

	p := &policy.Policy{IndexAllFields: true, StopOnFieldError: true}

	// When
	res, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	// Then: the build fails with B's error and C is never attempted
	require.Error(t, err)
	assert.Nil(t, res)
	var fe *crawlerrors.FieldAddError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, idB.String(), fe.FieldID)
	assert.Equal(t, "B", fe.FieldName)
	assert.Equal(t, "seq", fe.ItemID)
	assert.Equal(t, []string{"A"}, doc.names())
	assert.Equal(t, 0, doc.callCount("C"))
	assert.Empty(t, sink.fatalLines())
}

func TestBuildDocumentFields_Sequential_NoStop_SwallowsAndLogsFatal(t *testing.T) {
	item := content.NewMemoryItem("seq").
		Declare(content.NewMemoryField(idA, "A", "text", "a"), true).
		Declare(content.NewMemoryField(idB, "B", "text", "b"), true).
		Declare(content.NewMemoryField(idC, "C", "text", "c"), true)
	doc := newRecordingWriter().failing("B")
	sink := &recordingSink{}
	engine, _ := newTestEngine(sink)

	res, err := engine.BuildDocumentFields(context.Background(), item, doc, &policy.Policy{IndexAllFields: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, doc.names())
	require.Len(t, res.Swallowed, 1)
	assert.Equal(t, idB.String(), res.Swallowed[0].FieldID)

	fatals := sink.fatalLines()
	require.Len(t, fatals, 1)
	assert.Contains(t, fatals[0], "item_id=seq")
	assert.Contains(t, fatals[0], "field_id="+idB.String())
	assert.Contains(t, fatals[0], "field_name=B")
}

func manyFieldItem(n int) (*content.MemoryItem, []content.FieldID) {
	item := content.NewMemoryItem("many")
	ids := make([]content.FieldID, n)
	for i := 0; i < n; i++ {
		ids[i] = content.NewFieldID()
		item.Declare(content.NewMemoryField(ids[i], fmt.Sprintf("F%02d", i), "text", "v"), true)
	}
	return item, ids
}

func TestBuildDocumentFields_Parallel_FailureDoesNotShortCircuit(t *testing.T) {
	// Given: 20 fields where F07 fails
	item, ids := manyFieldItem(20)
	doc := newRecordingWriter().failing("F07")
	engine, _ := newTestEngine(&recordingSink{})

	p := &policy.Policy{
		IndexAllFields:   true,
		StopOnFieldError: true,
		Parallel:         true,
		ParallelOptions:  policy.ParallelOptions{MaxDegree: 4},
	}

	// When
	_, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	// Then: every field was attempted and the aggregate names F07
	require.Error(t, err)
	assert.Equal(t, 20, doc.totalCalls())
	assert.Len(t, doc.names(), 19)

	var agg *crawlerrors.AggregateFieldError
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, []string{ids[7].String()}, agg.FieldIDs())
	assert.True(t, crawlerrors.IsFatal(err))
}

func TestBuildDocumentFields_Parallel_CollectsEveryFailure(t *testing.T) {
	item, ids := manyFieldItem(10)
	doc := newRecordingWriter().failing("F01").failing("F05").failing("F09")
	engine, _ := newTestEngine(&recordingSink{})

	p := &policy.Policy{IndexAllFields: true, StopOnFieldError: true, Parallel: true}

	_, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	var agg *crawlerrors.AggregateFieldError
	require.ErrorAs(t, err, &agg)
	assert.ElementsMatch(t, []string{ids[1].String(), ids[5].String(), ids[9].String()}, agg.FieldIDs())

	var fe *crawlerrors.FieldAddError
	assert.True(t, errors.As(err, &fe), "aggregate should expose field errors")
}

func TestBuildDocumentFields_Parallel_NoStop_SwallowsLikeSequential(t *testing.T) {
	item, ids := manyFieldItem(8)
	doc := newRecordingWriter().failing("F03")
	sink := &recordingSink{}
	engine, _ := newTestEngine(sink)

	p := &policy.Policy{IndexAllFields: true, Parallel: true}

	res, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	require.NoError(t, err)
	assert.Len(t, doc.names(), 7)
	require.Len(t, res.Swallowed, 1)
	assert.Equal(t, ids[3].String(), res.Swallowed[0].FieldID)
	assert.Len(t, sink.fatalLines(), 1)
}

func TestBuildDocumentFields_Parallel_RespectsMaxDegree(t *testing.T) {
	item, _ := manyFieldItem(16)
	doc := newRecordingWriter()
	doc.delay = 5 * time.Millisecond
	engine, _ := newTestEngine(&recordingSink{})

	p := &policy.Policy{
		IndexAllFields:  true,
		Parallel:        true,
		ParallelOptions: policy.ParallelOptions{MaxDegree: 2},
	}

	_, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	require.NoError(t, err)
	assert.Equal(t, 16, doc.totalCalls())
	assert.LessOrEqual(t, doc.peak.Load(), int32(2))
}

func TestBuildDocumentFields_Parallel_FailedPhaseSkipsIncludedByID(t *testing.T) {
	// Given: Title loaded and failing, Hidden included by id but not loaded
	item := threeFieldItem()
	doc := newRecordingWriter().failing("Title")
	engine, _ := newTestEngine(&recordingSink{})

	p := &policy.Policy{
		Included:         policy.NewKeySet("Title", idC.String()),
		StopOnFieldError: true,
		Parallel:         true,
	}

	// When
	_, err := engine.BuildDocumentFields(context.Background(), item, doc, p)

	// Then: the second phase never runs
	var agg *crawlerrors.AggregateFieldError
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, 0, doc.callCount("Hidden"))
}

func TestBuildDocumentFields_Cancelled_ReturnsCancellationError(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			item, _ := manyFieldItem(5)
			doc := newRecordingWriter()
			engine, _ := newTestEngine(&recordingSink{})

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := engine.BuildDocumentFields(ctx, item, doc,
				&policy.Policy{IndexAllFields: true, Parallel: parallel, StopOnFieldError: true})

			require.Error(t, err)
			assert.Equal(t, crawlerrors.ErrCodeBuildCancelled, crawlerrors.GetCode(err))
			assert.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, 0, doc.totalCalls())
		})
	}
}

func TestBuildDocumentFields_FallbackScope_ReleasedOnEveryPath(t *testing.T) {
	item, _ := manyFieldItem(6)
	doc := newRecordingWriter().failing("F02")
	engine, sw := newTestEngine(&recordingSink{})

	_, err := engine.BuildDocumentFields(context.Background(), item, doc,
		&policy.Policy{IndexAllFields: true, Parallel: true, StopOnFieldError: true})

	require.Error(t, err)
	assert.Equal(t, int64(0), sw.Active())
	assert.Equal(t, int64(6), sw.Entered())
	doc.mu.Lock()
	defer doc.mu.Unlock()
	for name, enabled := range doc.fallback {
		assert.True(t, enabled, "fallback not enabled while adding %s", name)
	}
}

func TestBuildDocumentFields_RequiresInputs(t *testing.T) {
	engine, _ := newTestEngine(&recordingSink{})
	ctx := context.Background()

	_, err := engine.BuildDocumentFields(ctx, nil, newRecordingWriter(), &policy.Policy{})
	assert.Equal(t, crawlerrors.ErrCodeInvalidInput, crawlerrors.GetCode(err))

	_, err = engine.BuildDocumentFields(ctx, threeFieldItem(), nil, &policy.Policy{})
	assert.Equal(t, crawlerrors.ErrCodeInvalidInput, crawlerrors.GetCode(err))

	_, err = engine.BuildDocumentFields(ctx, threeFieldItem(), newRecordingWriter(), nil)
	assert.Equal(t, crawlerrors.ErrCodeInvalidPolicy, crawlerrors.GetCode(err))
}

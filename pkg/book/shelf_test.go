package book

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShelf_OpenCreatesAndReuses(t *testing.T) {
	g := &scriptedGenerator{responses: []string{pageJSON("p1", "a1")}}
	sink := &recorderSink{}
	sh := NewShelf("reader", newTestDeps(g, sink))
	ctx := context.Background()

	first, err := sh.Open(ctx, "codex_paths")
	assert.NoError(t, err)

	second, err := sh.Open(ctx, "codex_paths")
	assert.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, g.textCalls())
	assert.Same(t, first, sh.Active())
}

func TestShelf_OpeningAnotherBookClosesPrevious(t *testing.T) {
	g := &scriptedGenerator{responses: []string{
		pageJSON("p1", "a1"),
		pageJSON("q1", "b1"),
	}}
	sink := &recorderSink{}
	sh := NewShelf("reader", newTestDeps(g, sink))
	ctx := context.Background()

	first, err := sh.Open(ctx, "codex_paths")
	assert.NoError(t, err)

	second, err := sh.Open(ctx, "whispering_grove")
	assert.NoError(t, err)

	assert.False(t, first.Active())
	assert.True(t, second.Active())
	assert.Same(t, second, sh.Active())

	// The first book kept its state for a later return.
	assert.Equal(t, "p1", first.CurrentPage().PageID)
}

func TestShelf_RestoresFromStore(t *testing.T) {
	store := newMemStore()
	store.snaps["codex_paths"] = &Snapshot{
		BookID:  "codex_paths",
		Title:   "Codex Paths",
		Seed:    "abcd1234abcd1234",
		Pages:   map[string]*Page{"p9": {PageID: "p9", Title: "Deep In", Prose: "Far along now.", Choices: []Choice{{ID: "on", Label: "Press on"}}}},
		Current: "p9",
		Path:    []string{"a1", "b2", "c3"},
	}

	g := &scriptedGenerator{}
	sink := &recorderSink{}
	deps := newTestDeps(g, sink)
	deps.Store = store
	sh := NewShelf("reader", deps)

	sess, err := sh.Open(context.Background(), "codex_paths")
	assert.NoError(t, err)

	// Restored sessions re-render without any generation call.
	assert.Equal(t, 0, g.textCalls())
	assert.Len(t, sink.pages, 1)
	assert.Equal(t, "p9", sess.CurrentPage().PageID)
	assert.Equal(t, "abcd1234abcd1234", sess.Seed())
	assert.Equal(t, []string{"a1", "b2", "c3"}, sess.Path())
}

func TestShelf_Close(t *testing.T) {
	g := &scriptedGenerator{responses: []string{pageJSON("p1", "a1")}}
	sink := &recorderSink{}
	sh := NewShelf("reader", newTestDeps(g, sink))
	ctx := context.Background()

	sess, err := sh.Open(ctx, "codex_paths")
	assert.NoError(t, err)

	sh.Close(ctx)
	assert.Nil(t, sh.Active())
	assert.False(t, sess.Active())

	// Closing an empty shelf is a no-op.
	sh.Close(ctx)
}

package effects

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/rgeddes/inkbound/pkg/player"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	topics   []string
	types    []string
	payloads []map[string]any
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, eventType string, payload map[string]any) error {
	p.topics = append(p.topics, topic)
	p.types = append(p.types, eventType)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestApplier_ClampsUnitStats(t *testing.T) {
	state := player.New()
	a := NewApplier(state, nil, testLogger())
	ctx := context.Background()

	a.Apply(ctx, &Effects{Truth: &Op{Kind: OpDelta, Value: 5}})
	if state.Truth() != 1.0 {
		t.Errorf("Expected truth clamped to 1.0, got %v", state.Truth())
	}

	// A second overshoot must not push past the bound.
	a.Apply(ctx, &Effects{Truth: &Op{Kind: OpDelta, Value: 5}})
	if state.Truth() != 1.0 {
		t.Errorf("Expected truth to stay at 1.0, got %v", state.Truth())
	}

	a.Apply(ctx, &Effects{Shadow: &Op{Kind: OpDelta, Value: -5}})
	if state.Shadow() != 0 {
		t.Errorf("Expected shadow clamped to 0, got %v", state.Shadow())
	}
}

func TestApplier_AssignReplacesValue(t *testing.T) {
	state := player.New()
	a := NewApplier(state, nil, testLogger())

	a.Apply(context.Background(), &Effects{Truth: &Op{Kind: OpAssign, Value: 0.3}})
	if state.Truth() != 0.3 {
		t.Errorf("Expected truth assigned to 0.3, got %v", state.Truth())
	}
}

func TestApplier_IntStatBounds(t *testing.T) {
	state := player.New()
	a := NewApplier(state, nil, testLogger())
	ctx := context.Background()

	a.Apply(ctx, &Effects{HP: &Op{Kind: OpDelta, Value: -1000}})
	if state.HP() != 0 {
		t.Errorf("Expected hp clamped to 0, got %d", state.HP())
	}

	a.Apply(ctx, &Effects{HP: &Op{Kind: OpDelta, Value: 1000}})
	if state.HP() != 100 {
		t.Errorf("Expected hp clamped to 100, got %d", state.HP())
	}

	a.Apply(ctx, &Effects{Insight: &Op{Kind: OpDelta, Value: -10}})
	if state.Insight() != 0 {
		t.Errorf("Expected insight floored at 0, got %d", state.Insight())
	}

	// Fractional results truncate toward the floor.
	a.Apply(ctx, &Effects{Insight: &Op{Kind: OpDelta, Value: 2.7}})
	if state.Insight() != 2 {
		t.Errorf("Expected insight 2, got %d", state.Insight())
	}
}

func TestApplier_CumulativeCoherence(t *testing.T) {
	state := player.New()
	a := NewApplier(state, nil, testLogger())

	a.Apply(context.Background(), &Effects{Coherence: []Op{
		{Kind: OpDelta, Value: 0.2},
		{Kind: OpDelta, Value: 0.2},
	}})

	got := state.Coherence()
	if got < 0.89 || got > 0.91 {
		t.Errorf("Expected coherence near 0.9 after cumulative deltas, got %v", got)
	}
}

func TestApplier_Items(t *testing.T) {
	state := player.New()
	a := NewApplier(state, nil, testLogger())
	ctx := context.Background()

	a.Apply(ctx, &Effects{GiveItem: "lantern"})
	if !state.HasItem("lantern") {
		t.Error("Expected lantern in inventory")
	}

	a.Apply(ctx, &Effects{TakeItem: "lantern"})
	if state.HasItem("lantern") {
		t.Error("Expected lantern removed from inventory")
	}
}

func TestApplier_PublishesEvent(t *testing.T) {
	state := player.New()
	pub := &recordingPublisher{}
	a := NewApplier(state, pub, testLogger())

	a.Apply(context.Background(), &Effects{
		Truth:    &Op{Kind: OpDelta, Value: 0.1},
		GiveItem: "brass_key",
	})

	if len(pub.types) != 1 {
		t.Fatalf("Expected 1 published event, got %d", len(pub.types))
	}
	if pub.topics[0] != "player-events" {
		t.Errorf("Expected topic player-events, got %q", pub.topics[0])
	}
	if pub.types[0] != "effects.applied" {
		t.Errorf("Expected event type effects.applied, got %q", pub.types[0])
	}
	if pub.payloads[0]["gave_item"] != "brass_key" {
		t.Errorf("Expected gave_item in payload, got %+v", pub.payloads[0])
	}
}

func TestApplier_EmptyEffectsPublishNothing(t *testing.T) {
	pub := &recordingPublisher{}
	a := NewApplier(player.New(), pub, testLogger())

	a.Apply(context.Background(), nil)
	a.Apply(context.Background(), &Effects{})

	if len(pub.types) != 0 {
		t.Errorf("Expected no events for empty effects, got %d", len(pub.types))
	}
}

func TestApplier_PublishFailureIsSwallowed(t *testing.T) {
	state := player.New()
	pub := &recordingPublisher{err: errors.New("bus down")}
	a := NewApplier(state, pub, testLogger())

	// Must not panic or surface the publish error; the stat write
	// still lands.
	a.Apply(context.Background(), &Effects{Truth: &Op{Kind: OpAssign, Value: 0.7}})
	if state.Truth() != 0.7 {
		t.Errorf("Expected truth 0.7 despite publish failure, got %v", state.Truth())
	}
}

package effects

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// PlayerState is the stat and inventory store the applier writes to.
// The concrete store lives outside this package; the applier only
// needs the numeric fields and item operations named here.
type PlayerState interface {
	Truth() float64
	SetTruth(v float64)
	Coherence() float64
	SetCoherence(v float64)
	Shadow() float64
	SetShadow(v float64)
	Insight() int
	SetInsight(v int)
	HP() int
	SetHP(v int)

	AddItem(id string)
	RemoveItem(id string)
	HasItem(id string) bool
}

// Publisher is the fire-and-forget event sink notified after effects
// are applied. Publish failures never propagate to the caller.
type Publisher interface {
	Publish(ctx context.Context, topic string, eventType string, payload map[string]any) error
}

const playerTopic = "player-events"

// Applier maps decoded effects onto player state with clamping and
// coercion, then notifies the event publisher.
type Applier struct {
	state  PlayerState
	events Publisher
	logger *slog.Logger
}

func NewApplier(state PlayerState, events Publisher, logger *slog.Logger) *Applier {
	return &Applier{
		state:  state,
		events: events,
		logger: logger,
	}
}

// applyOp resolves a single operation against a current value.
func applyOp(current float64, op Op) float64 {
	if op.Kind == OpAssign {
		return op.Value
	}
	return current + op.Value
}

// clampUnit bounds probability-like stats to [0,1].
func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Apply writes every recognized effect onto the player state. All
// writes for one effects block complete before Apply returns, so a
// single command never exposes a partially applied update.
func (a *Applier) Apply(ctx context.Context, e *Effects) {
	if e.IsEmpty() {
		return
	}

	if e.Truth != nil {
		a.state.SetTruth(clampUnit(applyOp(a.state.Truth(), *e.Truth)))
	}
	for _, op := range e.Coherence {
		a.state.SetCoherence(clampUnit(applyOp(a.state.Coherence(), op)))
	}
	if e.Shadow != nil {
		a.state.SetShadow(clampUnit(applyOp(a.state.Shadow(), *e.Shadow)))
	}
	if e.Insight != nil {
		v := applyOp(float64(a.state.Insight()), *e.Insight)
		a.state.SetInsight(int(math.Max(0, math.Floor(v))))
	}
	if e.HP != nil {
		v := applyOp(float64(a.state.HP()), *e.HP)
		a.state.SetHP(int(math.Max(0, math.Min(100, math.Floor(v)))))
	}

	if e.GiveItem != "" {
		a.state.AddItem(e.GiveItem)
	}
	if e.TakeItem != "" {
		a.state.RemoveItem(e.TakeItem)
	}

	a.notify(ctx, e)
}

// notify publishes an effects.applied event. Failures are logged and
// swallowed so the narrative flow is never blocked on the event bus.
func (a *Applier) notify(ctx context.Context, e *Effects) {
	if a.events == nil {
		return
	}

	payload := map[string]any{
		"truth":     a.state.Truth(),
		"coherence": a.state.Coherence(),
		"shadow":    a.state.Shadow(),
		"insight":   a.state.Insight(),
		"hp":        a.state.HP(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if e.GiveItem != "" {
		payload["gave_item"] = e.GiveItem
	}
	if e.TakeItem != "" {
		payload["took_item"] = e.TakeItem
	}

	if err := a.events.Publish(ctx, playerTopic, "effects.applied", payload); err != nil {
		a.logger.Debug("Failed to publish effects event", "error", err)
	}
}

package effects

import (
	"encoding/json"
	"strconv"
	"strings"
)

// OpKind distinguishes relative deltas from absolute assignments.
type OpKind int

const (
	// OpDelta adds the value to the current stat.
	OpDelta OpKind = iota
	// OpAssign replaces the current stat with the value.
	OpAssign
)

// Op is a single decoded stat operation. Model output carries these
// either as bare numbers (delta) or as "=N" strings (assign); they are
// decoded once here rather than re-interpreted at each call site.
type Op struct {
	Kind  OpKind
	Value float64
}

// Effects is a sparse set of stat operations and item grants parsed
// from a page or choice. Coherence is a slice because the model may
// address the stat through both the dotted "quantum.coherence" key and
// a nested "quantum" object in the same effects block; both apply.
type Effects struct {
	Truth     *Op
	Coherence []Op
	Shadow    *Op
	Insight   *Op
	HP        *Op
	GiveItem  string
	TakeItem  string
}

// IsEmpty checks if the effects block carries no operations.
func (e *Effects) IsEmpty() bool {
	return e == nil || (e.Truth == nil &&
		len(e.Coherence) == 0 &&
		e.Shadow == nil &&
		e.Insight == nil &&
		e.HP == nil &&
		e.GiveItem == "" &&
		e.TakeItem == "")
}

// decodeOp interprets a raw effects value. Numbers are deltas; strings
// with a leading "=" are absolute assignments. Anything else is
// ignored, since the model is not contractually bound to the shape.
func decodeOp(raw json.RawMessage) *Op {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &Op{Kind: OpDelta, Value: n}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "=") {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s[1:]), 64)
	if err != nil {
		return nil
	}
	return &Op{Kind: OpAssign, Value: v}
}

// UnmarshalJSON decodes the loosely-typed effects object emitted by
// the model into tagged operations. Unrecognized keys and undecodable
// values are dropped silently.
func (e *Effects) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["truth"]; ok {
		e.Truth = decodeOp(raw)
	}
	if raw, ok := fields["shadow"]; ok {
		e.Shadow = decodeOp(raw)
	}
	if raw, ok := fields["insight"]; ok {
		e.Insight = decodeOp(raw)
	}
	if raw, ok := fields["hp"]; ok {
		e.HP = decodeOp(raw)
	}

	// The dotted literal key is checked before the nested object so
	// decode order (and therefore apply order) is deterministic.
	if raw, ok := fields["quantum.coherence"]; ok {
		if op := decodeOp(raw); op != nil {
			e.Coherence = append(e.Coherence, *op)
		}
	}
	if raw, ok := fields["quantum"]; ok {
		// Either a bare value or an object holding a coherence key.
		if op := decodeOp(raw); op != nil {
			e.Coherence = append(e.Coherence, *op)
		} else {
			var nested struct {
				Coherence json.RawMessage `json:"coherence"`
			}
			if err := json.Unmarshal(raw, &nested); err == nil && nested.Coherence != nil {
				if op := decodeOp(nested.Coherence); op != nil {
					e.Coherence = append(e.Coherence, *op)
				}
			}
		}
	}

	if raw, ok := fields["give_item"]; ok {
		_ = json.Unmarshal(raw, &e.GiveItem)
	}
	if raw, ok := fields["take_item"]; ok {
		_ = json.Unmarshal(raw, &e.TakeItem)
	}

	return nil
}

// encodeOp renders an operation back into its wire form.
func encodeOp(op Op) any {
	if op.Kind == OpAssign {
		return "=" + strconv.FormatFloat(op.Value, 'f', -1, 64)
	}
	return op.Value
}

// MarshalJSON serializes the effects back into the same wire shape the
// decoder accepts, so session snapshots round-trip cleanly.
func (e Effects) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any)

	if e.Truth != nil {
		fields["truth"] = encodeOp(*e.Truth)
	}
	if e.Shadow != nil {
		fields["shadow"] = encodeOp(*e.Shadow)
	}
	if e.Insight != nil {
		fields["insight"] = encodeOp(*e.Insight)
	}
	if e.HP != nil {
		fields["hp"] = encodeOp(*e.HP)
	}
	if len(e.Coherence) > 0 {
		fields["quantum.coherence"] = encodeOp(e.Coherence[0])
	}
	if len(e.Coherence) > 1 {
		fields["quantum"] = map[string]any{"coherence": encodeOp(e.Coherence[1])}
	}
	if e.GiveItem != "" {
		fields["give_item"] = e.GiveItem
	}
	if e.TakeItem != "" {
		fields["take_item"] = e.TakeItem
	}

	return json.Marshal(fields)
}

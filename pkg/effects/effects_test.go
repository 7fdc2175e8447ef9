package effects

import (
	"encoding/json"
	"testing"
)

func TestEffects_UnmarshalDeltas(t *testing.T) {
	var e Effects
	err := json.Unmarshal([]byte(`{"truth":0.1,"shadow":-0.2,"insight":1,"hp":-5}`), &e)
	if err != nil {
		t.Fatalf("Failed to unmarshal effects: %v", err)
	}

	if e.Truth == nil || e.Truth.Kind != OpDelta || e.Truth.Value != 0.1 {
		t.Errorf("Expected truth delta 0.1, got %+v", e.Truth)
	}
	if e.Shadow == nil || e.Shadow.Kind != OpDelta || e.Shadow.Value != -0.2 {
		t.Errorf("Expected shadow delta -0.2, got %+v", e.Shadow)
	}
	if e.Insight == nil || e.Insight.Value != 1 {
		t.Errorf("Expected insight delta 1, got %+v", e.Insight)
	}
	if e.HP == nil || e.HP.Value != -5 {
		t.Errorf("Expected hp delta -5, got %+v", e.HP)
	}
}

func TestEffects_UnmarshalAssign(t *testing.T) {
	var e Effects
	err := json.Unmarshal([]byte(`{"truth":"=0.3","hp":"= 50"}`), &e)
	if err != nil {
		t.Fatalf("Failed to unmarshal effects: %v", err)
	}

	if e.Truth == nil || e.Truth.Kind != OpAssign || e.Truth.Value != 0.3 {
		t.Errorf("Expected truth assign 0.3, got %+v", e.Truth)
	}
	if e.HP == nil || e.HP.Kind != OpAssign || e.HP.Value != 50 {
		t.Errorf("Expected hp assign 50, got %+v", e.HP)
	}
}

func TestEffects_CoherenceDottedAndNested(t *testing.T) {
	var e Effects
	err := json.Unmarshal([]byte(`{"quantum.coherence":0.05,"quantum":{"coherence":-0.02}}`), &e)
	if err != nil {
		t.Fatalf("Failed to unmarshal effects: %v", err)
	}

	if len(e.Coherence) != 2 {
		t.Fatalf("Expected 2 coherence ops, got %d", len(e.Coherence))
	}
	// The dotted key decodes first.
	if e.Coherence[0].Value != 0.05 {
		t.Errorf("Expected first coherence op 0.05, got %v", e.Coherence[0].Value)
	}
	if e.Coherence[1].Value != -0.02 {
		t.Errorf("Expected second coherence op -0.02, got %v", e.Coherence[1].Value)
	}
}

func TestEffects_CoherenceBareQuantum(t *testing.T) {
	var e Effects
	err := json.Unmarshal([]byte(`{"quantum":0.1}`), &e)
	if err != nil {
		t.Fatalf("Failed to unmarshal effects: %v", err)
	}

	if len(e.Coherence) != 1 || e.Coherence[0].Kind != OpDelta || e.Coherence[0].Value != 0.1 {
		t.Errorf("Expected one coherence delta 0.1, got %+v", e.Coherence)
	}
}

func TestEffects_CoherenceAssignString(t *testing.T) {
	var e Effects
	err := json.Unmarshal([]byte(`{"quantum.coherence":"=0.9"}`), &e)
	if err != nil {
		t.Fatalf("Failed to unmarshal effects: %v", err)
	}

	if len(e.Coherence) != 1 || e.Coherence[0].Kind != OpAssign || e.Coherence[0].Value != 0.9 {
		t.Errorf("Expected coherence assign 0.9, got %+v", e.Coherence)
	}
}

func TestEffects_Items(t *testing.T) {
	var e Effects
	err := json.Unmarshal([]byte(`{"give_item":"brass_key","take_item":"torn_map"}`), &e)
	if err != nil {
		t.Fatalf("Failed to unmarshal effects: %v", err)
	}

	if e.GiveItem != "brass_key" {
		t.Errorf("Expected give_item brass_key, got %q", e.GiveItem)
	}
	if e.TakeItem != "torn_map" {
		t.Errorf("Expected take_item torn_map, got %q", e.TakeItem)
	}
}

func TestEffects_DropsUndecodableValues(t *testing.T) {
	var e Effects
	err := json.Unmarshal([]byte(`{"truth":"maybe","hp":[1,2],"insight":"0.5","unknown":7}`), &e)
	if err != nil {
		t.Fatalf("Expected undecodable values to be dropped, got error: %v", err)
	}

	if e.Truth != nil {
		t.Errorf("Expected truth to be dropped, got %+v", e.Truth)
	}
	if e.HP != nil {
		t.Errorf("Expected hp to be dropped, got %+v", e.HP)
	}
	if e.Insight != nil {
		t.Errorf("Expected non-assign string insight to be dropped, got %+v", e.Insight)
	}
	if !e.IsEmpty() {
		t.Error("Expected effects to be empty after dropping all values")
	}
}

func TestEffects_IsEmpty(t *testing.T) {
	var nilEffects *Effects
	if !nilEffects.IsEmpty() {
		t.Error("Expected nil effects to be empty")
	}

	if !(&Effects{}).IsEmpty() {
		t.Error("Expected zero effects to be empty")
	}

	e := &Effects{GiveItem: "lantern"}
	if e.IsEmpty() {
		t.Error("Expected effects with an item grant to be non-empty")
	}
}

func TestEffects_MarshalRoundTrip(t *testing.T) {
	original := Effects{
		Truth:     &Op{Kind: OpAssign, Value: 0.3},
		Coherence: []Op{{Kind: OpDelta, Value: 0.05}, {Kind: OpDelta, Value: -0.02}},
		HP:        &Op{Kind: OpDelta, Value: -5},
		GiveItem:  "brass_key",
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal effects: %v", err)
	}

	var decoded Effects
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal effects: %v", err)
	}

	if decoded.Truth == nil || decoded.Truth.Kind != OpAssign || decoded.Truth.Value != 0.3 {
		t.Errorf("Truth did not round-trip, got %+v", decoded.Truth)
	}
	if len(decoded.Coherence) != 2 {
		t.Fatalf("Expected 2 coherence ops after round-trip, got %d", len(decoded.Coherence))
	}
	if decoded.Coherence[0].Value != 0.05 || decoded.Coherence[1].Value != -0.02 {
		t.Errorf("Coherence ops did not round-trip, got %+v", decoded.Coherence)
	}
	if decoded.HP == nil || decoded.HP.Value != -5 {
		t.Errorf("HP did not round-trip, got %+v", decoded.HP)
	}
	if decoded.GiveItem != "brass_key" {
		t.Errorf("GiveItem did not round-trip, got %q", decoded.GiveItem)
	}
}

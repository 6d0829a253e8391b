package activity

import (
	"reflect"
	"testing"

	"github.com/goliatone/go-bitstate"
)

func TestBuildRegisterChangedEventIncludesChangeMetadata(t *testing.T) {
	catalog := bitstate.MustCatalog("power", "low", "mid", "high")
	state := bitstate.NewState()
	state.Bits = bitstate.Bit(0) | bitstate.Bit(2)
	state.History.Serial = 7
	state.History.Recent = 2
	meta := map[string]any{"custom": "value"}
	input := RegisterEventInput{
		ActorID:    " actor ",
		ObjectID:   " fan ",
		Metadata:   meta,
		Changed:    bitstate.Bit(1) | bitstate.Bit(2),
		State:      &state,
		Catalog:    catalog,
		Recipients: []string{"ops@example.com"},
	}

	event := BuildRegisterChangedEvent(input)

	if event.Verb != VerbRegisterChanged || event.ObjectType != ObjectTypeRegister || event.ObjectID != "fan" {
		t.Fatalf("unexpected event identity: %+v", event)
	}
	if event.ActorID != "actor" {
		t.Fatalf("expected trimmed actor, got %q", event.ActorID)
	}
	if event.Metadata["changed_mask"] != uint64(6) {
		t.Fatalf("expected changed_mask 6, got %v", event.Metadata["changed_mask"])
	}
	if !reflect.DeepEqual(event.Metadata["changed_indices"], []int{1, 2}) {
		t.Fatalf("unexpected changed_indices %v", event.Metadata["changed_indices"])
	}
	if !reflect.DeepEqual(event.Metadata["changed_items"], []string{"low", "mid"}) {
		t.Fatalf("unexpected changed_items %v", event.Metadata["changed_items"])
	}
	if !reflect.DeepEqual(event.Metadata["set"], []string{"mid"}) {
		t.Fatalf("unexpected set %v", event.Metadata["set"])
	}
	if !reflect.DeepEqual(event.Metadata["cleared"], []string{"low"}) {
		t.Fatalf("unexpected cleared %v", event.Metadata["cleared"])
	}
	if event.Metadata["serial"] != uint64(7) || event.Metadata["recent"] != 2 {
		t.Fatalf("unexpected history metadata %+v", event.Metadata)
	}
	if _, ok := event.Metadata["brand"]; ok {
		t.Fatalf("zero brand should be omitted")
	}
	if event.Metadata["custom"] != "value" {
		t.Fatalf("expected custom metadata preserved")
	}
	if _, ok := meta["changed_mask"]; ok {
		t.Fatalf("expected input metadata untouched")
	}
	event.Recipients[0] = "changed"
	if input.Recipients[0] != "ops@example.com" {
		t.Fatalf("expected input recipients untouched")
	}
}

func TestBuildRegisterChangedEventWithoutCatalogUsesIndexNames(t *testing.T) {
	state := bitstate.NewState()
	state.Bits = bitstate.Bit(5)
	event := BuildRegisterChangedEvent(RegisterEventInput{Changed: bitstate.Bit(5), State: &state})
	if _, ok := event.Metadata["changed_items"]; ok {
		t.Fatalf("changed_items requires a catalog")
	}
	if !reflect.DeepEqual(event.Metadata["set"], []string{"item5"}) {
		t.Fatalf("unexpected set %v", event.Metadata["set"])
	}
	if _, ok := event.Metadata["recent"]; ok {
		t.Fatalf("recent should be omitted when unset")
	}
}

func TestBuildRegisterEventFallbackObjectID(t *testing.T) {
	event := BuildRegisterChangedEvent(RegisterEventInput{})
	if event.ObjectID != ObjectTypeRegister {
		t.Fatalf("expected fallback object ID %q, got %q", ObjectTypeRegister, event.ObjectID)
	}
	if event.Metadata != nil {
		t.Fatalf("expected no metadata, got %v", event.Metadata)
	}

	restored := BuildRegisterRestoredEvent(RegisterEventInput{SnapshotID: "snap-1"})
	if restored.Verb != VerbRegisterRestored || restored.ObjectID != "snap-1" {
		t.Fatalf("expected snapshot id as object id, got %+v", restored)
	}
	if restored.Metadata["snapshot_id"] != "snap-1" {
		t.Fatalf("expected snapshot_id metadata, got %v", restored.Metadata)
	}
}

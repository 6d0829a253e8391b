package activity

import (
	"strings"
	"time"

	"github.com/goliatone/go-bitstate"
)

const (
	// VerbRegisterChanged is emitted for every pumped commit.
	VerbRegisterChanged = "register.changed"
	// VerbRegisterRestored is emitted when a register is rebuilt from a store.
	VerbRegisterRestored = "register.restored"
	// ObjectTypeRegister is the object type of every register event.
	ObjectTypeRegister = "register"
)

// RegisterEventInput describes the fields shared by register events.
type RegisterEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	// Changed is the change mask of the commit being reported.
	Changed bitstate.Mask
	// State, when set, adds the register words after the commit.
	State   *bitstate.State
	Catalog *bitstate.Catalog
	// SnapshotID identifies a stored snapshot for restore events.
	SnapshotID string
	OccurredAt time.Time
}

// BuildRegisterChangedEvent constructs an event for a committed change.
func BuildRegisterChangedEvent(input RegisterEventInput) Event {
	return buildRegisterEvent(VerbRegisterChanged, input)
}

// BuildRegisterRestoredEvent constructs an event for a register restored
// from a snapshot.
func BuildRegisterRestoredEvent(input RegisterEventInput) Event {
	return buildRegisterEvent(VerbRegisterRestored, input)
}

func buildRegisterEvent(verb string, input RegisterEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Changed != 0 {
		metadata = ensureMetadata(metadata)
		metadata["changed_mask"] = uint64(input.Changed)
		metadata["changed_indices"] = input.Changed.Slice()
		if input.Catalog != nil {
			metadata["changed_items"] = input.Catalog.Names(input.Changed)
		}
	}
	if input.State != nil {
		s := *input.State
		metadata = ensureMetadata(metadata)
		metadata["serial"] = s.History.Serial
		metadata["bits"] = uint64(s.Bits)
		metadata["disabled"] = uint64(s.Disabled)
		if s.History.Recent != bitstate.NoRecent {
			metadata["recent"] = s.History.Recent
		}
		if s.History.Brand != 0 {
			metadata["brand"] = s.History.Brand
		}
		if input.Changed != 0 {
			metadata["set"] = input.Catalog.Names(input.Changed & s.Bits)
			metadata["cleared"] = input.Catalog.Names(input.Changed &^ s.Bits)
		}
	}
	if input.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata["snapshot_id"] = input.SnapshotID
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.SnapshotID)
	}
	if objectID == "" {
		objectID = ObjectTypeRegister
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     ObjectTypeRegister,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     cloneStrings(input.Recipients),
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

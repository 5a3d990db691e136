package activity

import (
	"fmt"
	"strings"
	"time"
)

// Verbs emitted for committed entity writes.
const (
	VerbEntityAdded    = "entity.added"
	VerbEntityModified = "entity.modified"
	VerbEntityDeleted  = "entity.deleted"
)

// EntityEventInput describes one entity written by a unit of work.
type EntityEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	// Type is the entity type name and becomes the event object type.
	Type string
	// Path locates the entity in the graph it was tracked through.
	Path string
	// Keys are the entity key values; they form the object id.
	Keys    []any
	BatchID string
	UnitID  string
	// Operation names how the graph was introduced, e.g. "update".
	Operation  string
	OccurredAt time.Time
}

// BuildEntityAddedEvent constructs an activity event for an inserted entity.
func BuildEntityAddedEvent(input EntityEventInput) Event {
	return buildEntityEvent(VerbEntityAdded, input)
}

// BuildEntityModifiedEvent constructs an activity event for an updated entity.
func BuildEntityModifiedEvent(input EntityEventInput) Event {
	return buildEntityEvent(VerbEntityModified, input)
}

// BuildEntityDeletedEvent constructs an activity event for a deleted entity.
func BuildEntityDeletedEvent(input EntityEventInput) Event {
	return buildEntityEvent(VerbEntityDeleted, input)
}

func buildEntityEvent(verb string, input EntityEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Path != "" {
		metadata = ensureMetadata(metadata)
		metadata[MetaPath] = input.Path
	}
	if len(input.Keys) > 0 {
		metadata = ensureMetadata(metadata)
		metadata[MetaKeys] = append([]any{}, input.Keys...)
	}
	if input.BatchID != "" {
		metadata = ensureMetadata(metadata)
		metadata[MetaBatchID] = input.BatchID
	}
	if input.UnitID != "" {
		metadata = ensureMetadata(metadata)
		metadata[MetaUnitID] = input.UnitID
	}
	if input.Operation != "" {
		metadata = ensureMetadata(metadata)
		metadata[MetaOperation] = input.Operation
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectType := strings.TrimSpace(input.Type)
	if objectType == "" {
		objectType = "entity"
	}
	objectID := formatKeys(input.Keys)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Path)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

// formatKeys joins key values with "/". It returns "" when every key holds
// its zero value, which is the case for rows the store has not numbered yet.
func formatKeys(keys []any) string {
	parts := make([]string, 0, len(keys))
	set := false
	for _, key := range keys {
		text := fmt.Sprint(key)
		if key != nil && text != "" && text != "0" && text != "00000000-0000-0000-0000-000000000000" {
			set = true
		}
		parts = append(parts, text)
	}
	if !set {
		return ""
	}
	return strings.Join(parts, "/")
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

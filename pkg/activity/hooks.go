package activity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Metadata keys set on entity events.
const (
	MetaPath      = "path"
	MetaKeys      = "keys"
	MetaBatchID   = "batch_id"
	MetaUnitID    = "unit_id"
	MetaOperation = "operation"
)

// Event is one committed entity write. ObjectType is the entity type name and
// ObjectID its formatted key, or the graph path for rows the store has not
// numbered yet.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Path returns the graph path the entity was tracked through.
func (e Event) Path() string { return e.metaString(MetaPath) }

// BatchID returns the batch the entity was saved in.
func (e Event) BatchID() string { return e.metaString(MetaBatchID) }

// UnitID returns the unit of work that committed the entity.
func (e Event) UnitID() string { return e.metaString(MetaUnitID) }

// Keys returns the key values recorded for the entity, if any.
func (e Event) Keys() []any {
	keys, _ := e.Metadata[MetaKeys].([]any)
	return keys
}

// IsEntityEvent reports whether the verb is one of the entity write verbs.
func (e Event) IsEntityEvent() bool {
	switch strings.TrimSpace(e.Verb) {
	case VerbEntityAdded, VerbEntityModified, VerbEntityDeleted:
		return true
	}
	return false
}

func (e Event) metaString(key string) string {
	value, _ := e.Metadata[key].(string)
	return strings.TrimSpace(value)
}

// ActivityHook receives normalized entity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// ForTypes wraps hook so it only sees events for the named entity types.
// An empty type list passes every event through.
func ForTypes(hook ActivityHook, types ...string) ActivityHook {
	if hook == nil || len(types) == 0 {
		return hook
	}
	allowed := make(map[string]struct{}, len(types))
	for _, name := range types {
		allowed[strings.TrimSpace(name)] = struct{}{}
	}
	return HookFunc(func(ctx context.Context, event Event) error {
		if _, ok := allowed[event.ObjectType]; !ok {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify forwards the event to every hook and joins their errors. Events
// without a verb, an entity type, or some identity (key or path) are dropped.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims fields, clones metadata and recipients, falls back to
// the recorded path for a missing ObjectID and stamps OccurredAt when unset.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Verb = strings.TrimSpace(event.Verb)
	normalized.ActorID = strings.TrimSpace(event.ActorID)
	normalized.UserID = strings.TrimSpace(event.UserID)
	normalized.TenantID = strings.TrimSpace(event.TenantID)
	normalized.ObjectType = strings.TrimSpace(event.ObjectType)
	normalized.ObjectID = strings.TrimSpace(event.ObjectID)
	normalized.Channel = strings.TrimSpace(event.Channel)
	normalized.DefinitionCode = strings.TrimSpace(event.DefinitionCode)
	normalized.Metadata = cloneMap(event.Metadata)
	if normalized.ObjectID == "" {
		normalized.ObjectID = normalized.Path()
	}
	if len(event.Recipients) > 0 {
		normalized.Recipients = append([]string{}, event.Recipients...)
	} else {
		normalized.Recipients = nil
	}
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}

package graphstate

import (
	"fmt"
	"strings"
)

// State is the persistence intent assigned to a tracked entity.
type State int

const (
	// Detached marks an entity that is not tracked. It is the zero value and is
	// never stored in a ChangeSet.
	Detached State = iota
	// Unchanged entities exist in the store and need no write.
	Unchanged
	// Added entities are new and will be inserted.
	Added
	// Modified entities exist in the store and will be updated.
	Modified
	// Deleted entities exist in the store and will be removed.
	Deleted
)

func (s State) String() string {
	switch s {
	case Detached:
		return "Detached"
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState converts a state name into a State. Matching is case-insensitive.
func ParseState(value string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "detached":
		return Detached, nil
	case "unchanged":
		return Unchanged, nil
	case "added":
		return Added, nil
	case "modified":
		return Modified, nil
	case "deleted":
		return Deleted, nil
	default:
		return Detached, fmt.Errorf("graphstate: unknown state %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s State) valid() bool {
	return s >= Detached && s <= Deleted
}

// requiresKey reports whether an explicitly requested state refers to a row
// that already exists in the store.
func (s State) requiresKey() bool {
	return s == Unchanged || s == Modified || s == Deleted
}

// Operation names the entry point a graph is introduced through.
type Operation int

const (
	OperationUnknown Operation = iota
	// OperationAdd marks every reachable entity as Added.
	OperationAdd
	// OperationUpdate infers Added or Modified from key presence.
	OperationUpdate
	// OperationRemove deletes the root and leaves related entities untouched.
	OperationRemove
	// OperationAttach infers Added or Unchanged from key presence.
	OperationAttach
	// OperationAttachWithState attaches the graph and forces the root state.
	OperationAttachWithState
	// OperationEntry forces the root state without traversing relations.
	OperationEntry
	// OperationTrackGraph delegates every decision to a Visitor.
	OperationTrackGraph
)

func (o Operation) String() string {
	switch o {
	case OperationAdd:
		return "add"
	case OperationUpdate:
		return "update"
	case OperationRemove:
		return "remove"
	case OperationAttach:
		return "attach"
	case OperationAttachWithState:
		return "attach_with_state"
	case OperationEntry:
		return "entry"
	case OperationTrackGraph:
		return "track_graph"
	default:
		return "unknown"
	}
}

// ParseOperation converts the String form of an operation back into its value.
// Unrecognised values return OperationUnknown.
func ParseOperation(value string) Operation {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "add":
		return OperationAdd
	case "update":
		return OperationUpdate
	case "remove":
		return OperationRemove
	case "attach":
		return OperationAttach
	case "attach_with_state":
		return OperationAttachWithState
	case "entry":
		return OperationEntry
	case "track_graph":
		return OperationTrackGraph
	default:
		return OperationUnknown
	}
}

// Intent describes how a graph enters the tracker. Build one with Add, Update,
// Remove, Attach, AttachWithState, EntryState or TrackGraph.
type Intent struct {
	Operation Operation
	// State is the explicit root state for OperationAttachWithState and
	// OperationEntry.
	State State
	// Visitor decides states for OperationTrackGraph.
	Visitor Visitor
}

// Add marks the whole graph as new regardless of key values.
func Add() Intent { return Intent{Operation: OperationAdd} }

// Update marks keyed entities Modified and the rest Added.
func Update() Intent { return Intent{Operation: OperationUpdate} }

// Remove marks the root Deleted. Related entities are never deleted.
func Remove() Intent { return Intent{Operation: OperationRemove} }

// Attach marks keyed entities Unchanged and the rest Added.
func Attach() Intent { return Intent{Operation: OperationAttach} }

// AttachWithState attaches the graph and sets the root to state.
func AttachWithState(state State) Intent {
	return Intent{Operation: OperationAttachWithState, State: state}
}

// EntryState tracks only the root, in state.
func EntryState(state State) Intent {
	return Intent{Operation: OperationEntry, State: state}
}

// TrackGraph walks the graph and lets visitor pick each state.
func TrackGraph(visitor Visitor) Intent {
	return Intent{Operation: OperationTrackGraph, Visitor: visitor}
}

func (i Intent) validate() error {
	switch i.Operation {
	case OperationAdd, OperationUpdate, OperationRemove, OperationAttach:
		return nil
	case OperationAttachWithState, OperationEntry:
		if !i.State.valid() || i.State == Detached {
			return fmt.Errorf("%w: %s requires Added, Modified, Deleted or Unchanged, got %s", ErrInvalidIntent, i.Operation, i.State)
		}
		return nil
	case OperationTrackGraph:
		if i.Visitor == nil {
			return fmt.Errorf("%w: %s requires a visitor", ErrInvalidIntent, i.Operation)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown operation %d", ErrInvalidIntent, int(i.Operation))
	}
}

// Node is the view of one graph entity handed to a Visitor.
type Node struct {
	// Entity is the pointer to the visited struct.
	Entity any
	Type   *EntityType
	// Path locates the node from the root, e.g. "Customer.Orders[1]".
	Path  string
	Depth int
	// Parent is nil for the root.
	Parent any
	// Relation is the relation the node was reached through; nil for the root.
	Relation    *Relation
	IsKeySet    bool
	IsGenerated bool
}

// IsRoot reports whether n is the graph root.
func (n Node) IsRoot() bool {
	return n.Relation == nil
}

// TypeName returns the entity type name.
func (n Node) TypeName() string {
	if n.Type == nil {
		return ""
	}
	return n.Type.Name
}

// InCollection reports whether the node was reached through a collection.
func (n Node) InCollection() bool {
	return n.Relation != nil && n.Relation.Kind == RelationCollection
}

// HasUsableKey reports whether the node identifies an existing row: the key is
// set, or the key is supplied by the caller so its default value is legitimate.
func (n Node) HasUsableKey() bool {
	return n.IsKeySet || !n.IsGenerated
}

// Visitor decides the state of each node during TrackGraph. Returning Detached
// leaves the node untracked. A non-nil error aborts the resolution.
type Visitor interface {
	Visit(node Node) (State, error)
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(node Node) (State, error)

// Visit implements Visitor.
func (f VisitorFunc) Visit(node Node) (State, error) {
	if f == nil {
		return Detached, nil
	}
	return f(node)
}

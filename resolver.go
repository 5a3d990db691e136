package graphstate

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Resolver assigns tracking states to the entities of a disconnected graph.
// It holds no per-call state and is safe for concurrent use on independent
// graphs.
type Resolver struct {
	model  *Model
	keys   *KeyInspector
	logger ResolutionLogger
}

// NewResolver constructs a Resolver.
func NewResolver(opts ...Option) *Resolver {
	cfg := applyOptions(opts)
	model := cfg.model
	if model == nil {
		model = NewModel(cfg.modelOptions...)
	}
	logger := cfg.logger
	if logger == nil {
		logger = noopResolutionLogger{}
	}
	return &Resolver{
		model:  model,
		keys:   NewKeyInspector(model),
		logger: logger,
	}
}

// Model returns the descriptor registry used by the resolver.
func (r *Resolver) Model() *Model {
	return r.model
}

// Keys returns the key inspector backed by the resolver's model.
func (r *Resolver) Keys() *KeyInspector {
	return r.keys
}

// Add resolves root with the Add intent.
func (r *Resolver) Add(root any) (*ChangeSet, error) {
	return r.Resolve(root, Add())
}

// Update resolves root with the Update intent.
func (r *Resolver) Update(root any) (*ChangeSet, error) {
	return r.Resolve(root, Update())
}

// Remove resolves root with the Remove intent.
func (r *Resolver) Remove(root any) (*ChangeSet, error) {
	return r.Resolve(root, Remove())
}

// Attach resolves root with the Attach intent.
func (r *Resolver) Attach(root any) (*ChangeSet, error) {
	return r.Resolve(root, Attach())
}

// AttachWithState resolves root with the AttachWithState intent.
func (r *Resolver) AttachWithState(root any, state State) (*ChangeSet, error) {
	return r.Resolve(root, AttachWithState(state))
}

// Entry resolves root with the Entry intent.
func (r *Resolver) Entry(root any, state State) (*ChangeSet, error) {
	return r.Resolve(root, EntryState(state))
}

// TrackGraph resolves root with a TrackGraph intent around visitor.
func (r *Resolver) TrackGraph(root any, visitor Visitor) (*ChangeSet, error) {
	return r.Resolve(root, TrackGraph(visitor))
}

// Resolve walks the graph reachable from root and assigns a state to each
// entity according to intent. root must be a non-nil pointer to a struct whose
// type has a key.
func (r *Resolver) Resolve(root any, intent Intent) (*ChangeSet, error) {
	start := time.Now()
	run := &resolution{resolver: r, intent: intent, seen: newIdentitySet()}
	changes, err := run.execute(root)

	event := ResolutionLogEvent{
		Operation: intent.Operation,
		RootType:  run.rootType,
		Visited:   run.seen.Len(),
		Duration:  time.Since(start),
		Err:       err,
	}
	if changes != nil {
		event.Tracked = changes.Len()
		event.States = changes.Summary()
	}
	r.logger.LogResolution(event)

	if err != nil {
		return nil, err
	}
	return changes, nil
}

type decision func(node Node) (State, error)

// resolution is the state of one Resolve call.
type resolution struct {
	resolver *Resolver
	intent   Intent
	seen     *identitySet
	rootType string
}

type frame struct {
	value reflect.Value
	node  Node
}

func (run *resolution) execute(root any) (*ChangeSet, error) {
	if err := run.intent.validate(); err != nil {
		return nil, err
	}

	rv := reflect.ValueOf(root)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, &ConfigurationError{Type: fmt.Sprintf("%T", root), Err: ErrInvalidRoot}
	}
	et, err := run.resolver.model.EntityType(rv.Type())
	if err != nil {
		return nil, err
	}
	run.rootType = et.Name

	rootFrame := frame{
		value: rv,
		node: Node{
			Entity:      root,
			Type:        et,
			Path:        et.Name,
			IsKeySet:    et.isKeySet(rv.Elem()),
			IsGenerated: et.Generated,
		},
	}
	if err := run.checkRoot(rootFrame.node); err != nil {
		return nil, err
	}

	changes := newChangeSet(run.intent.Operation)
	decide := run.decision()

	if run.intent.Operation == OperationEntry {
		run.seen.MarkSeen(rootFrame.node.Entity)
		if err := run.assign(changes, rootFrame, decide); err != nil {
			return nil, err
		}
		return changes, nil
	}

	stack := []frame{rootFrame}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if run.seen.Seen(current.node.Entity) {
			continue
		}
		run.seen.MarkSeen(current.node.Entity)

		if err := run.assign(changes, current, decide); err != nil {
			return nil, err
		}

		children := run.children(current)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return changes, nil
}

// checkRoot rejects intents that need an existing row when the root's
// store-generated key is unset. Entry sets the root state as given and is
// never rejected.
func (run *resolution) checkRoot(root Node) error {
	if root.HasUsableKey() {
		return nil
	}
	needsKey := false
	state := run.intent.State
	switch run.intent.Operation {
	case OperationRemove:
		needsKey = true
		state = Deleted
	case OperationAttachWithState:
		needsKey = run.intent.State.requiresKey()
	}
	if !needsKey {
		return nil
	}
	return &InvalidOperationError{
		Operation: run.intent.Operation,
		State:     state,
		Type:      root.TypeName(),
		Path:      root.Path,
		Keys:      root.Type.KeyNames(),
	}
}

func (run *resolution) assign(changes *ChangeSet, f frame, decide decision) error {
	state, err := decide(f.node)
	if err != nil {
		return fmt.Errorf("graphstate: %s %s: %w", run.intent.Operation, f.node.Path, err)
	}
	if !state.valid() {
		return fmt.Errorf("%w: %s returned %s for %s", ErrInvalidIntent, run.intent.Operation, state, f.node.Path)
	}
	if state == Detached {
		return nil
	}
	changes.add(Entry{
		Entity: f.node.Entity,
		Type:   f.node.TypeName(),
		Path:   f.node.Path,
		State:  state,
		KeySet: f.node.IsKeySet,
		Keys:   f.node.Type.keyValues(f.value.Elem()),
	})
	return nil
}

func (run *resolution) decision() decision {
	switch run.intent.Operation {
	case OperationAdd:
		return func(Node) (State, error) { return Added, nil }
	case OperationUpdate:
		return inferState(Modified)
	case OperationRemove:
		return rootState(Deleted, inferState(Unchanged))
	case OperationAttach:
		return inferState(Unchanged)
	case OperationAttachWithState, OperationEntry:
		return rootState(run.intent.State, inferState(Unchanged))
	case OperationTrackGraph:
		return run.intent.Visitor.Visit
	default:
		return func(Node) (State, error) { return Detached, nil }
	}
}

// inferState returns existing for nodes with a usable key and Added otherwise.
func inferState(existing State) decision {
	return func(node Node) (State, error) {
		if node.HasUsableKey() {
			return existing, nil
		}
		return Added, nil
	}
}

func rootState(state State, others decision) decision {
	return func(node Node) (State, error) {
		if node.IsRoot() {
			return state, nil
		}
		return others(node)
	}
}

// children lists the related entities of f in declaration order, collection
// members in index order.
func (run *resolution) children(f frame) []frame {
	parent := f.value.Elem()
	et := f.node.Type
	var out []frame
	for i := range et.Relations {
		rel := &et.Relations[i]
		fv, err := parent.FieldByIndexErr(rel.index)
		if err != nil {
			continue
		}
		base := f.node.Path + "." + rel.Name
		switch rel.Kind {
		case RelationReference:
			if fv.IsNil() {
				continue
			}
			out = append(out, run.child(f, rel, fv, base))
		case RelationCollection:
			if fv.Kind() == reflect.Slice && fv.IsNil() {
				continue
			}
			for j := 0; j < fv.Len(); j++ {
				elem := fv.Index(j)
				var ptr reflect.Value
				if rel.elemPointer {
					if elem.IsNil() {
						continue
					}
					ptr = elem
				} else {
					if !elem.CanAddr() {
						continue
					}
					ptr = elem.Addr()
				}
				out = append(out, run.child(f, rel, ptr, base+"["+strconv.Itoa(j)+"]"))
			}
		}
	}
	return out
}

func (run *resolution) child(parent frame, rel *Relation, ptr reflect.Value, path string) frame {
	return frame{
		value: ptr,
		node: Node{
			Entity:      ptr.Interface(),
			Type:        rel.Target,
			Path:        path,
			Depth:       parent.node.Depth + 1,
			Parent:      parent.node.Entity,
			Relation:    rel,
			IsKeySet:    rel.Target.isKeySet(ptr.Elem()),
			IsGenerated: rel.Target.Generated,
		},
	}
}

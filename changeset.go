package graphstate

// Entry is one tracked entity and its assigned state.
type Entry struct {
	Entity any
	Type   string
	Path   string
	State  State
	KeySet bool
	Keys   []any
}

// ChangeSet maps every tracked instance of one resolution to its state.
// Entries keep traversal order.
type ChangeSet struct {
	operation Operation
	entries   []Entry
	index     map[any]int
	paths     map[string]int
}

func newChangeSet(operation Operation) *ChangeSet {
	return &ChangeSet{
		operation: operation,
		index:     map[any]int{},
		paths:     map[string]int{},
	}
}

func (c *ChangeSet) add(entry Entry) {
	if i, ok := c.index[entry.Entity]; ok {
		c.entries[i].State = entry.State
		return
	}
	c.index[entry.Entity] = len(c.entries)
	c.paths[entry.Path] = len(c.entries)
	c.entries = append(c.entries, entry)
}

// Operation returns the operation that produced the change set.
func (c *ChangeSet) Operation() Operation {
	if c == nil {
		return OperationUnknown
	}
	return c.operation
}

// Len returns the number of tracked entities.
func (c *ChangeSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// State returns the state assigned to entity, which must be the same pointer
// that was part of the graph.
func (c *ChangeSet) State(entity any) (State, bool) {
	if c == nil {
		return Detached, false
	}
	i, ok := c.index[entity]
	if !ok {
		return Detached, false
	}
	return c.entries[i].State, true
}

// StateAt returns the state of the entity first reached at path.
func (c *ChangeSet) StateAt(path string) (State, bool) {
	if c == nil {
		return Detached, false
	}
	i, ok := c.paths[path]
	if !ok {
		return Detached, false
	}
	return c.entries[i].State, true
}

// Entries returns a copy of the tracked entries in traversal order.
func (c *ChangeSet) Entries() []Entry {
	if c == nil {
		return nil
	}
	return append([]Entry(nil), c.entries...)
}

// EntriesOf returns the entries whose entity type is typeName.
func (c *ChangeSet) EntriesOf(typeName string) []Entry {
	if c == nil {
		return nil
	}
	var out []Entry
	for _, entry := range c.entries {
		if entry.Type == typeName {
			out = append(out, entry)
		}
	}
	return out
}

// Count returns how many entries are in state.
func (c *ChangeSet) Count(state State) int {
	if c == nil {
		return 0
	}
	n := 0
	for _, entry := range c.entries {
		if entry.State == state {
			n++
		}
	}
	return n
}

// Summary counts entries per state.
func (c *ChangeSet) Summary() map[State]int {
	out := map[State]int{}
	if c == nil {
		return out
	}
	for _, entry := range c.entries {
		out[entry.State]++
	}
	return out
}

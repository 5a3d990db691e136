package graphstate

// identitySet records visited entities by pointer identity. Two structurally
// equal instances are distinct entries; the same instance reached through two
// paths is one entry.
type identitySet struct {
	seen map[any]struct{}
}

func newIdentitySet() *identitySet {
	return &identitySet{seen: map[any]struct{}{}}
}

// Seen reports whether ptr was marked.
func (s *identitySet) Seen(ptr any) bool {
	_, ok := s.seen[ptr]
	return ok
}

// MarkSeen records ptr.
func (s *identitySet) MarkSeen(ptr any) {
	s.seen[ptr] = struct{}{}
}

// Len returns the number of distinct instances marked.
func (s *identitySet) Len() int {
	return len(s.seen)
}

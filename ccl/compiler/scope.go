package compiler

// binding is one visible name: a slot-backed local or a top-level
// constant.
type binding struct {
	name string
	typ  Type
	slot int        // -1 for constants
	c    *ConstDecl // set for constants
}

// scope is one lexical frame, chained to its parent. Bindings live in
// an ordered slice so nothing about checking depends on map order.
type scope struct {
	parent   *scope
	bindings []binding
}

func (s *scope) declare(b binding) {
	s.bindings = append(s.bindings, b)
}

// lookup resolves name in this frame or any enclosing one. Within a
// frame the newest binding wins, so re-declaring a name shadows the
// earlier slot from that point on.
func (s *scope) lookup(name string) *binding {
	for sc := s; sc != nil; sc = sc.parent {
		for i := len(sc.bindings) - 1; i >= 0; i-- {
			if sc.bindings[i].name == name {
				return &sc.bindings[i]
			}
		}
	}
	return nil
}

// shadows reports whether name is already visible in an enclosing
// frame.
func (s *scope) shadows(name string) bool {
	if s.parent == nil {
		return false
	}
	return s.parent.lookup(name) != nil
}

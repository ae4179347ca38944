package vm

import "strings"

// linearize computes the C3 resolution order of a type with the given
// bases. The result starts with t itself.
func linearize(t *Type, bases []*Type) ([]*Type, error) {
	for i, b := range bases {
		for _, other := range bases[:i] {
			if b == other {
				return nil, typeErrorf("duplicate base class %s", b.name)
			}
		}
	}

	seqs := make([][]*Type, 0, len(bases)+1)
	for _, b := range bases {
		seqs = append(seqs, append([]*Type(nil), b.mro...))
	}
	seqs = append(seqs, append([]*Type(nil), bases...))

	result := []*Type{t}
	for {
		live := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		seqs = live
		if len(seqs) == 0 {
			return result, nil
		}

		var next *Type
		for _, s := range seqs {
			if !inTail(s[0], seqs) {
				next = s[0]
				break
			}
		}
		if next == nil {
			return nil, mroConflict(seqs)
		}

		result = append(result, next)
		for i, s := range seqs {
			if s[0] == next {
				seqs[i] = s[1:]
			}
		}
	}
}

func inTail(t *Type, seqs [][]*Type) bool {
	for _, s := range seqs {
		for _, x := range s[1:] {
			if x == t {
				return true
			}
		}
	}
	return false
}

func mroConflict(seqs [][]*Type) error {
	var names []string
	seen := map[*Type]bool{}
	for _, s := range seqs {
		if !seen[s[0]] {
			seen[s[0]] = true
			names = append(names, s[0].name)
		}
	}
	return typeErrorf("Cannot create a consistent method resolution order (MRO) for bases %s",
		strings.Join(names, ", "))
}

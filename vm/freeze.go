package vm

// DeepFreeze implements the deep-freeze transformation (§3 invariant 3,
// §5): it produces a value reachable only through deep-frozen
// sub-values, cloning any non-frozen Object/Array along the way so the
// result is guaranteed acyclic even if the original graph was not.
//
// Primitives and already deep-frozen values are returned unchanged.
// Functions, Closures and Classes are treated as already immutable
// (§3: "immutable after build") and are not cloned.
func DeepFreeze(v Value) Value {
	seen := make(map[Value]Value)
	return deepFreeze(v, seen)
}

func deepFreeze(v Value, seen map[Value]Value) Value {
	switch x := v.(type) {
	case *Object:
		if x.mutability == DeepFrozen {
			return x
		}
		if clone, ok := seen[x]; ok {
			return clone
		}
		out := &Object{class: Retain(x.class).(*Class), fields: NewFieldMap(), mutability: DeepFrozen}
		seen[x] = out
		for _, name := range x.fields.Names() {
			val, _ := x.fields.Read(name)
			frozenVal := deepFreeze(val, seen)
			out.fields.WriteNewConst(name, frozenVal)
		}
		return out
	case *Array:
		if x.mutability == DeepFrozen {
			return x
		}
		if clone, ok := seen[x]; ok {
			return clone
		}
		out := &Array{mutability: DeepFrozen}
		seen[x] = out
		elems := make([]Value, len(x.elems))
		for i, e := range x.elems {
			elems[i] = Retain(deepFreeze(e, seen))
		}
		out.elems = elems
		return out
	default:
		return v
	}
}

// IsDeepFrozen reports whether every value reachable from v is
// deep-frozen, used by the boundary test for §8 invariant 5.
func IsDeepFrozen(v Value) bool {
	switch x := v.(type) {
	case *Object:
		if x.mutability != DeepFrozen {
			return false
		}
		for _, name := range x.fields.Names() {
			val, _ := x.fields.Read(name)
			if !IsDeepFrozen(val) {
				return false
			}
		}
		return true
	case *Array:
		if x.mutability != DeepFrozen {
			return false
		}
		for _, e := range x.elems {
			if !IsDeepFrozen(e) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

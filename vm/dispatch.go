package vm

// resolveCallable implements the call dispatch polymorphism of §4.4:
// an Object with a `call` field redirects through that field with the
// object bound as `this`; a Class calls its constructor with the class
// itself bound as `this` and its bound environment injected as a
// leading argument, the same way a Closure injects its captured one; a
// bare Function calls directly, with no `this` or leading argument
// unless the caller supplied them explicitly.
//
// Returns the concrete Function to invoke, the closure environment to
// prepend as a leading argument (nil if none), and the `this` value the
// polymorphic resolution itself established (nil if the ordinary
// pending-this register should be consulted instead).
func resolveCallable(callee Value) (fn *Function, closureEnv Value, boundThis Value, err error) {
	switch v := callee.(type) {
	case *Function:
		return v, nil, nil, nil
	case *Closure:
		return v.Fn, v.Env, nil, nil
	case *Class:
		return v.Ctor, v.Env, v, nil
	case *Object:
		callField := ReadField(v, "call")
		if callField == Null {
			return nil, nil, nil, errNotCallable(v)
		}
		innerFn, innerEnv, _, ierr := resolveCallable(callField)
		if ierr != nil {
			return nil, nil, nil, ierr
		}
		return innerFn, innerEnv, v, nil
	default:
		return nil, nil, nil, errNotCallable(callee)
	}
}

package vm

import (
	"regexp"
	"strings"
)

// headerPattern matches a function declaration's first line well enough
// to pull out its (possibly dotted) name and parameter list, e.g.
// "function math.sqrt(x) {" or "array.push(value)".
var headerPattern = regexp.MustCompile(`(?:function\s+)?([A-Za-z_@][A-Za-z0-9_.@]*)\s*\(([^)]*)\)`)

// AddNative implements the Host API's addNative (§6): it parses header
// for a name and parameter list, builds a native Function, and installs
// it on scope. Dotted names ("math.trig.sin") lazily create the
// intermediate objects along the path.
func AddNative(header string, fn NativeFn, scope Value, isConst bool) error {
	m := headerPattern.FindStringSubmatch(header)
	if m == nil {
		return NewRuntimeError("addNative: cannot parse header %q", header)
	}
	dotted := m[1]
	params := splitParams(m[2])

	parts := strings.Split(dotted, ".")
	name := parts[len(parts)-1]
	path := parts[:len(parts)-1]

	target, err := resolveOrCreatePath(scope, path)
	if err != nil {
		return err
	}

	native := NewNativeFunction(name, params, fn)
	return WriteField(target, name, native, isConst)
}

func splitParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	pieces := strings.Split(raw, ",")
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveOrCreatePath walks path from scope, creating a plain Object
// field for every segment that does not yet exist.
func resolveOrCreatePath(scope Value, path []string) (Value, error) {
	cur := scope
	for _, seg := range path {
		next := ReadField(cur, seg)
		if next == Null {
			child := NewObject(RootClass)
			if err := WriteField(cur, seg, child, false); err != nil {
				return nil, err
			}
			next = child
		}
		cur = next
	}
	return cur, nil
}

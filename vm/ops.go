package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// typeOf implements the "type-of" value operation (§4.1).
func typeOf(v Value) string {
	switch v.Kind() {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindFunction, KindClosure:
		return "function"
	case KindClass:
		return "class"
	default:
		return "object"
	}
}

// TypeOf is the exported form of typeOf.
func TypeOf(v Value) string { return typeOf(v) }

// ToBool implements "to-bool": everything is truthy except null, false,
// the number 0 (and NaN), and the empty string.
func ToBool(v Value) bool {
	switch x := v.(type) {
	case nullValue:
		return false
	case BoolValue:
		return bool(x)
	case NumberValue:
		f := float64(x)
		return f != 0 && !math.IsNaN(f)
	case *StringValue:
		return x.s != ""
	default:
		return true
	}
}

// ToDouble implements "to-double".
func ToDouble(v Value) float64 {
	switch x := v.(type) {
	case NumberValue:
		return float64(x)
	case BoolValue:
		if x {
			return 1
		}
		return 0
	case *StringValue:
		return StringToNumber(x.s)
	case nullValue:
		return 0
	default:
		return math.NaN()
	}
}

// ToInt32 implements "to-int32": truncates toward zero, wrapping into
// the int32 range the way JS-family ToInt32 does.
func ToInt32(v Value) int32 {
	f := ToDouble(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(f))
}

// IsInteger implements "is-integer": a Number whose value has no
// fractional part and is within the exactly-representable range.
func IsInteger(v Value) bool {
	n, ok := v.(NumberValue)
	if !ok {
		return false
	}
	f := float64(n)
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) && math.Abs(f) <= (1<<53)
}

// ToString implements "to-string".
func ToString(v Value) string {
	switch x := v.(type) {
	case nullValue:
		return "null"
	case BoolValue:
		if x {
			return "true"
		}
		return "false"
	case NumberValue:
		return NumberToString(float64(x))
	case *StringValue:
		return x.s
	case *Array:
		parts := make([]string, x.Len())
		for i, e := range x.elems {
			parts[i] = ToString(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case *Object:
		return "[object " + classNameOf(x.class) + "]"
	case *Function:
		return "[function " + x.Name + "]"
	case *Closure:
		return "[function " + x.Fn.Name + "]"
	case *Class:
		return "[class " + x.Name + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func classNameOf(c *Class) string {
	if c == nil {
		return "Object"
	}
	return c.Name
}

// NumberToString renders f using the shortest round-trip decimal form
// (§4.1).
func NumberToString(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// StringToNumber parses s the way "to-double" on a String does: a
// leading optional-sign decimal literal, NaN on failure, and the octal
// rule from §9 — a literal starting with "0" where every remaining
// digit is 0-7 parses as base 8.
func StringToNumber(s string) float64 {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0
	}
	if isOctalLiteral(t) {
		n, err := strconv.ParseInt(t[1:], 8, 64)
		if err == nil {
			return float64(n)
		}
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// isOctalLiteral implements the exact rule §9 calls out: "string starts
// with 0 and all digits are 0-7". A lone "0" does not count (nothing
// follows the leading zero to make it octal rather than just zero).
func isOctalLiteral(s string) bool {
	if len(s) < 2 || s[0] != '0' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return true
}

// Equals implements value equality: same variant and same payload for
// primitives, identity for heap values.
func Equals(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case nullValue:
		return true
	case BoolValue:
		return av == b.(BoolValue)
	case NumberValue:
		return av == b.(NumberValue)
	case *StringValue:
		return av.s == b.(*StringValue).s
	default:
		return a == b
	}
}

// Compare implements the value operation of the same name: same
// variant compares payloads, differing variants compare by variant
// ordinal. Returns -1, 0 or 1.
func Compare(a, b Value) int {
	if a.Kind() != b.Kind() {
		return compareOrdinal(a.Kind(), b.Kind())
	}
	switch av := a.(type) {
	case NumberValue:
		return compareFloat(float64(av), float64(b.(NumberValue)))
	case *StringValue:
		return strings.Compare(av.s, b.(*StringValue).s)
	case BoolValue:
		return compareBool(bool(av), bool(b.(BoolValue)))
	default:
		if a == b {
			return 0
		}
		return compareOrdinal(a.Kind(), b.Kind())
	}
}

func compareOrdinal(a, b Kind) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a && b:
		return -1
	default:
		return 1
	}
}

// ReadField implements "read-field(name) -> value" for every variant
// that carries fields: Object reads its own map, then its class chain;
// Class reads its own member defaults; String/Array/Number/Bool/
// Function/Closure fall back to their built-in class's members.
func ReadField(v Value, name string) Value {
	switch x := v.(type) {
	case *Object:
		if val, ok := x.ReadField(name); ok {
			return val
		}
		return readClassMember(x.class, name)
	case *StringValue:
		return readClassMember(stringClassOf(v), name)
	case *Array:
		if name == "length" {
			return NumberValue(x.Len())
		}
		return readClassMember(arrayClassOf(v), name)
	case *Class:
		if val, ok := x.Members.Read(name); ok {
			return val
		}
		return Null
	}
	if v != nil {
		if c := BuiltinClassOf(v.Kind()); c != nil {
			return readClassMember(c, name)
		}
	}
	return Null
}

func readClassMember(c *Class, name string) Value {
	for cur := c; cur != nil; cur = cur.Parent {
		if val, ok := cur.Members.Read(name); ok {
			return val
		}
	}
	return Null
}

// WriteField implements "write-field(name, value, const)". Only Object
// supports field writes at the instance level (§3 invariants 2-4);
// writing to any other variant's instance is a runtime error.
func WriteField(v Value, name string, value Value, asConst bool) error {
	obj, ok := v.(*Object)
	if !ok {
		return NewRuntimeError("cannot write field %q on a %s", name, typeOf(v))
	}
	return obj.WriteField(name, value, asConst)
}

// GetAt implements "get-at(key) -> value": a numeric key indexes an
// Array, otherwise the key is stringified and used as a field read.
func GetAt(v Value, key Value) (Value, error) {
	if arr, ok := v.(*Array); ok {
		if IsInteger(key) {
			return arr.Get(int(ToDouble(key))), nil
		}
		return Null, errInvalidIndex(key)
	}
	return ReadField(v, ToString(key)), nil
}

// SetAt implements "set-at(key, value)".
func SetAt(v Value, key Value, value Value) error {
	if arr, ok := v.(*Array); ok {
		if ToString(key) == "length" {
			return arr.SetLength(int(ToDouble(value)))
		}
		if !IsInteger(key) {
			return errInvalidIndex(key)
		}
		i := int(ToDouble(key))
		return arr.Set(i, value)
	}
	return WriteField(v, ToString(key), value, false)
}

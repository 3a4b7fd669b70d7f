package vm

// Global built-in classes back the field-read fallback for primitive and
// array values (§4.1): a String or Array has no Object of its own, but
// still answers read-field by walking a class chain the way an Object
// would. The natives package installs native methods onto these at
// startup via AddMember (Array#push); an Array's length is answered by
// ReadField itself rather than by a class member.
var (
	RootClass   = &Class{Name: "Object", Members: NewFieldMap()}
	StringClass = &Class{Name: "String", Parent: RootClass, Members: NewFieldMap()}
	ArrayClass  = &Class{Name: "Array", Parent: RootClass, Members: NewFieldMap()}
	NumberClass = &Class{Name: "Number", Parent: RootClass, Members: NewFieldMap()}
	BoolClass   = &Class{Name: "Boolean", Parent: RootClass, Members: NewFieldMap()}
	FunctionClass = &Class{Name: "Function", Parent: RootClass, Members: NewFieldMap()}

	builtinClassesByKind = map[Kind]*Class{
		KindString:   StringClass,
		KindArray:    ArrayClass,
		KindNumber:   NumberClass,
		KindBool:     BoolClass,
		KindFunction: FunctionClass,
		KindClosure:  FunctionClass,
	}
)

func stringClassOf(Value) *Class { return StringClass }
func arrayClassOf(Value) *Class  { return ArrayClass }

// BuiltinClassOf returns the global class used for field-read fallback
// on a primitive value's Kind, or nil if that Kind has no built-in.
func BuiltinClassOf(k Kind) *Class { return builtinClassesByKind[k] }

// AddMember installs name on a built-in class's member map. Used by the
// natives package to register methods like Array#push at startup.
func AddMember(c *Class, name string, value Value) {
	c.Members.WriteNewConst(name, value)
}

package vm

// Class is immutable once built (§3): a name, an optional parent class,
// a deep-frozen member-default map, the synthetic or user-declared
// constructor function, and the environment the constructor closes
// over for free-name resolution inside field initializers.
type Class struct {
	rc      int32
	Name    string
	Parent  *Class
	Members *FieldMap // declared var/const defaults, deep-frozen
	Ctor    *Function
	Env     Value
}

func (*Class) Kind() Kind { return KindClass }

func (c *Class) retain() { c.rc++ }
func (c *Class) release() {
	c.rc--
	if c.rc <= 0 {
		if c.Parent != nil {
			Release(c.Parent)
		}
		if c.Members != nil {
			c.Members.releaseAll()
		}
		if c.Ctor != nil {
			Release(c.Ctor)
		}
		Release(c.Env)
	}
}

// NewClass builds an immutable class value.
func NewClass(name string, parent *Class, members *FieldMap, ctor *Function, env Value) *Class {
	c := &Class{Name: name, Members: members, Ctor: Retain(ctor).(*Function), Env: Retain(env)}
	if parent != nil {
		c.Parent = Retain(parent).(*Class)
	}
	return c
}

// NewClassShell allocates a class with no constructor yet bound, for
// the self-referential case where the constructor routine's own body
// needs to push the class it belongs to as a constant before that
// routine exists. BindCtor completes construction once compiled.
func NewClassShell(name string, parent *Class, members *FieldMap) *Class {
	c := &Class{Name: name, Members: members}
	if parent != nil {
		c.Parent = Retain(parent).(*Class)
	}
	return c
}

// BindCtor finishes a class allocated via NewClassShell.
func (c *Class) BindCtor(ctor *Function) {
	c.Ctor = Retain(ctor).(*Function)
}

// SetEnv records the environment the class's field initializers and
// parent-constructor arguments resolve free names against. Calling a
// class auto-prepends this the same way a closure prepends its
// captured environment (§4.4 call dispatch), so it must be bound to the
// real environment once, at the class declaration's execution site,
// before any instantiation can occur.
func (c *Class) SetEnv(env Value) {
	if c.Env != nil {
		Release(c.Env)
	}
	c.Env = Retain(env)
}

// IsSubclassOf reports whether c is target or descends from it.
func (c *Class) IsSubclassOf(target *Class) bool {
	for cur := c; cur != nil; cur = cur.Parent {
		if cur == target {
			return true
		}
	}
	return false
}

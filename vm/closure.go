package vm

// Closure pairs a Function with the environment value captured at its
// definition site. Invoking a closure pushes Env as an additional
// leading argument ahead of the call's own arguments (§4.2 Call
// Convention step 3).
type Closure struct {
	rc  int32
	Fn  *Function
	Env Value
}

func (*Closure) Kind() Kind { return KindClosure }

func (c *Closure) retain() { c.rc++ }
func (c *Closure) release() {
	c.rc--
	if c.rc <= 0 {
		Release(c.Fn)
		Release(c.Env)
	}
}

// NewClosure binds fn to env.
func NewClosure(fn *Function, env Value) *Closure {
	return &Closure{Fn: Retain(fn).(*Function), Env: Retain(env)}
}

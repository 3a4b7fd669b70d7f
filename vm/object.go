package vm

// Object is a heap-allocated field map bound to a class, per §3/§4.1 of
// the value model: ordered name -> (value, const) storage, a class
// pointer for dispatch and field defaults, and a mutability tag.
type Object struct {
	rc         int32
	class      *Class
	fields     *FieldMap
	mutability Mutability
}

func (*Object) Kind() Kind { return KindObject }

func (o *Object) retain() { o.rc++ }

func (o *Object) release() {
	o.rc--
	if o.rc <= 0 {
		o.fields.releaseAll()
		if o.class != nil {
			Release(o.class)
		}
	}
}

// NewObject creates an empty, mutable object of the given class.
func NewObject(class *Class) *Object {
	if class != nil {
		class.retain()
	}
	return &Object{rc: 0, class: class, fields: NewFieldMap(), mutability: Mutable}
}

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

// SetClass reassigns the object's class, the mechanism a constructor
// chain uses to stamp a freshly allocated instance with each level's
// own class as it unwinds (§4.3 `new`/class instantiation step 2).
func (o *Object) SetClass(c *Class) {
	if o.class != nil {
		Release(o.class)
	}
	o.class = Retain(c).(*Class)
}

// Mutability returns the object's current mutability tag.
func (o *Object) Mutability() Mutability { return o.mutability }

// ReadField implements the value operation of the same name: look up
// name in this object's own field map. Does not consult the class.
func (o *Object) ReadField(name string) (Value, bool) {
	return o.fields.Read(name)
}

// WriteField writes name := value, creating it if absent. Returns an
// error if name exists as a constant or the object is frozen.
func (o *Object) WriteField(name string, value Value, asConst bool) error {
	if o.mutability != Mutable {
		return errConstField(name)
	}
	if asConst {
		if !o.fields.WriteNewConst(name, value) {
			return errConstField(name)
		}
		return nil
	}
	if !o.fields.Write(name, value, false) {
		return errConstField(name)
	}
	return nil
}

// Fields exposes the underlying field map for iteration (for-in over an
// object's own keys, JSON dumping, etc).
func (o *Object) Fields() *FieldMap { return o.fields }

package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// imageConstant is the CBOR-serializable form of a constant pool entry.
// Every variant codegen can place in a constant pool is representable:
// primitives directly, and Function/Class recursively through their own
// nested routine/member-map structure (§4.3 Closures, `new`/class
// instantiation both push compiled Functions and built Classes as
// constants).
type imageConstant struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
	Fn   *imageFunction
	Cls  *imageClass
}

type imageBlock struct {
	Code []byte
	Next [2]int
}

// imageRoutine is the on-disk ("*.lumc") representation of a compiled
// Routine, produced by the codegen pass and consumed by the CLI harness
// to skip recompilation on unchanged sources.
type imageRoutine struct {
	Name       string
	Constants  []imageConstant
	Blocks     []imageBlock
	NumParams  int
	ParamNames []string
}

// imageFunction serializes a user-defined Function. Native functions
// wrap a Go closure and cannot round-trip; codegen never places one in
// a constant pool, so EncodeImage rejects any it encounters.
type imageFunction struct {
	Name    string
	Params  []string
	Routine imageRoutine
}

// imageField is one entry of a Class's member-default FieldMap.
type imageField struct {
	Name    string
	Value   imageConstant
	IsConst bool
}

// imageClass serializes a Class: its own member defaults and
// constructor, plus its parent chain by value (classes are immutable
// and the codegen-time registeredClasses map means each is built once).
type imageClass struct {
	Name    string
	Parent  *imageClass
	Members []imageField
	Ctor    imageFunction
}

// EncodeImage serializes r to CBOR.
func EncodeImage(r *Routine) ([]byte, error) {
	img, err := encodeRoutine(r)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(img)
}

// DecodeImage deserializes a routine previously written by EncodeImage.
func DecodeImage(data []byte) (*Routine, error) {
	var img imageRoutine
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, err
	}
	return decodeRoutine(img), nil
}

func encodeRoutine(r *Routine) (imageRoutine, error) {
	img := imageRoutine{
		Name:       r.Name,
		NumParams:  r.NumParams,
		ParamNames: r.ParamNames,
	}
	for _, c := range r.Constants {
		ic, err := encodeConstant(c)
		if err != nil {
			return imageRoutine{}, err
		}
		img.Constants = append(img.Constants, ic)
	}
	for _, b := range r.Blocks {
		img.Blocks = append(img.Blocks, imageBlock{Code: b.Code, Next: b.Next})
	}
	return img, nil
}

func decodeRoutine(img imageRoutine) *Routine {
	r := &Routine{
		Name:       img.Name,
		NumParams:  img.NumParams,
		ParamNames: img.ParamNames,
		SourceMap:  make(map[BlockOffset]SourcePos),
	}
	for _, ic := range img.Constants {
		r.Constants = append(r.Constants, Retain(decodeConstant(ic)))
	}
	for _, ib := range img.Blocks {
		r.Blocks = append(r.Blocks, &Block{Code: ib.Code, Next: ib.Next})
	}
	return r
}

func encodeConstant(v Value) (imageConstant, error) {
	switch x := v.(type) {
	case nullValue:
		return imageConstant{Kind: KindNull}, nil
	case BoolValue:
		return imageConstant{Kind: KindBool, Bool: bool(x)}, nil
	case NumberValue:
		return imageConstant{Kind: KindNumber, Num: float64(x)}, nil
	case *StringValue:
		return imageConstant{Kind: KindString, Str: x.s}, nil
	case *Function:
		fn, err := encodeFunction(x)
		if err != nil {
			return imageConstant{}, err
		}
		return imageConstant{Kind: KindFunction, Fn: &fn}, nil
	case *Class:
		cls, err := encodeClass(x)
		if err != nil {
			return imageConstant{}, err
		}
		return imageConstant{Kind: KindClass, Cls: &cls}, nil
	default:
		return imageConstant{}, fmt.Errorf("vm: constant of kind %v is not serializable", v.Kind())
	}
}

func decodeConstant(ic imageConstant) Value {
	switch ic.Kind {
	case KindBool:
		return Bool(ic.Bool)
	case KindNumber:
		return Number(ic.Num)
	case KindString:
		return NewString(ic.Str)
	case KindFunction:
		return decodeFunction(*ic.Fn)
	case KindClass:
		return decodeClass(*ic.Cls)
	default:
		return Null
	}
}

func encodeFunction(f *Function) (imageFunction, error) {
	if f.IsNative() {
		return imageFunction{}, fmt.Errorf("vm: native function %q cannot be placed in a serialized constant pool", f.Name)
	}
	routine, err := encodeRoutine(f.Routine)
	if err != nil {
		return imageFunction{}, err
	}
	return imageFunction{Name: f.Name, Params: f.Params, Routine: routine}, nil
}

func decodeFunction(img imageFunction) *Function {
	return NewUserFunction(img.Name, img.Params, decodeRoutine(img.Routine))
}

func encodeClass(c *Class) (imageClass, error) {
	img := imageClass{Name: c.Name}
	if c.Parent != nil {
		parent, err := encodeClass(c.Parent)
		if err != nil {
			return imageClass{}, err
		}
		img.Parent = &parent
	}
	for _, name := range c.Members.Names() {
		val, _ := c.Members.Read(name)
		ic, err := encodeConstant(val)
		if err != nil {
			return imageClass{}, err
		}
		img.Members = append(img.Members, imageField{Name: name, Value: ic, IsConst: c.Members.IsConst(name)})
	}
	ctor, err := encodeFunction(c.Ctor)
	if err != nil {
		return imageClass{}, err
	}
	img.Ctor = ctor
	return img, nil
}

func decodeClass(img imageClass) *Class {
	var parent *Class
	if img.Parent != nil {
		parent = decodeClass(*img.Parent)
	}
	members := NewFieldMap()
	for _, f := range img.Members {
		members.Write(f.Name, decodeConstant(f.Value), f.IsConst)
	}
	return NewClass(img.Name, parent, members, decodeFunction(img.Ctor), Null)
}

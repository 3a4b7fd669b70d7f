package vm

import "testing"

func simpleRoutine() *Routine {
	return &Routine{
		Name:       "t",
		NumParams:  1,
		ParamNames: []string{"@env"},
		Constants:  []Value{Number(7), NewString("hi"), True},
		Blocks: []*Block{
			{Code: []byte{1, 2, 3}, Next: [2]int{-1, -1}},
		},
	}
}

func TestEncodeDecodeImageRoundTripsPrimitives(t *testing.T) {
	r := simpleRoutine()
	data, err := EncodeImage(r)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	got, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if got.Name != r.Name || got.NumParams != r.NumParams {
		t.Errorf("got Name=%q NumParams=%d, want Name=%q NumParams=%d", got.Name, got.NumParams, r.Name, r.NumParams)
	}
	if len(got.Constants) != 3 {
		t.Fatalf("Constants len = %d, want 3", len(got.Constants))
	}
	if n, ok := got.Constants[0].(NumberValue); !ok || float64(n) != 7 {
		t.Errorf("Constants[0] = %v, want 7", got.Constants[0])
	}
	if s, ok := got.Constants[1].(*StringValue); !ok || s.Go() != "hi" {
		t.Errorf("Constants[1] = %v, want %q", got.Constants[1], "hi")
	}
	if b, ok := got.Constants[2].(BoolValue); !ok || !bool(b) {
		t.Errorf("Constants[2] = %v, want true", got.Constants[2])
	}
	if len(got.Blocks) != 1 || len(got.Blocks[0].Code) != 3 {
		t.Fatalf("Blocks = %+v, want one 3-byte block", got.Blocks)
	}
}

func TestEncodeImageRejectsNativeFunctionConstant(t *testing.T) {
	native := NewNativeFunction("n", nil, func(*ExecutionContext) (Value, error) { return Null, nil })
	r := &Routine{Name: "t", Constants: []Value{native}}
	if _, err := EncodeImage(r); err == nil {
		t.Fatal("expected an error serializing a routine with a native function constant")
	}
}

func TestEncodeDecodeImageRoundTripsNestedFunctionConstant(t *testing.T) {
	inner := &Routine{Name: "inner", Constants: []Value{Number(1)}, Blocks: []*Block{{Next: [2]int{-1, -1}}}}
	fn := NewUserFunction("inner", []string{"@env"}, inner)
	outer := &Routine{Name: "outer", Constants: []Value{fn}, Blocks: []*Block{{Next: [2]int{-1, -1}}}}

	data, err := EncodeImage(outer)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	got, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	gotFn, ok := got.Constants[0].(*Function)
	if !ok {
		t.Fatalf("Constants[0] = %T, want *Function", got.Constants[0])
	}
	if gotFn.Name != "inner" || len(gotFn.Routine.Constants) != 1 {
		t.Errorf("decoded function = %+v", gotFn)
	}
}

func TestEncodeDecodeImageRoundTripsClassWithParent(t *testing.T) {
	parentMembers := NewFieldMap()
	parentMembers.Write("base", Number(1), false)
	parentCtor := NewUserFunction("A", []string{"@env"}, &Routine{Blocks: []*Block{{Next: [2]int{-1, -1}}}})
	parent := NewClass("A", nil, parentMembers, parentCtor, Null)

	childMembers := NewFieldMap()
	childMembers.Write("derived", Number(2), true)
	childCtor := NewUserFunction("B", []string{"@env"}, &Routine{Blocks: []*Block{{Next: [2]int{-1, -1}}}})
	child := NewClass("B", parent, childMembers, childCtor, Null)

	r := &Routine{Name: "t", Constants: []Value{child}, Blocks: []*Block{{Next: [2]int{-1, -1}}}}
	data, err := EncodeImage(r)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	got, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	gotClass, ok := got.Constants[0].(*Class)
	if !ok {
		t.Fatalf("Constants[0] = %T, want *Class", got.Constants[0])
	}
	if gotClass.Name != "B" || gotClass.Parent == nil || gotClass.Parent.Name != "A" {
		t.Fatalf("decoded class = %+v", gotClass)
	}
	if !gotClass.Members.IsConst("derived") {
		t.Error("expected derived to round-trip as const")
	}
}

package vm

import "testing"

func TestFieldMapWriteCreatesEntry(t *testing.T) {
	m := NewFieldMap()
	if !m.Write("x", Number(1), false) {
		t.Fatal("Write on a new name should succeed")
	}
	v, ok := m.Read("x")
	if !ok {
		t.Fatal("Read after Write should find the entry")
	}
	if n, ok := v.(NumberValue); !ok || float64(n) != 1 {
		t.Errorf("Read = %v, want 1", v)
	}
}

func TestFieldMapWriteOverwritesMutable(t *testing.T) {
	m := NewFieldMap()
	m.Write("x", Number(1), false)
	if !m.Write("x", Number(2), false) {
		t.Fatal("overwriting a mutable entry should succeed")
	}
	v, _ := m.Read("x")
	if n, ok := v.(NumberValue); !ok || float64(n) != 2 {
		t.Errorf("Read = %v, want 2", v)
	}
}

// TestFieldMapWriteRefusesConstOverwrite is the runtime mechanism
// behind NEW_CONST_FIELD's "Trying to write to constant" behavior (§8
// invariant 4): once a name is written as const, a later Write to the
// same name is refused regardless of the new value's own const flag.
func TestFieldMapWriteRefusesConstOverwrite(t *testing.T) {
	m := NewFieldMap()
	m.Write("x", Number(1), true)
	if m.Write("x", Number(2), false) {
		t.Fatal("Write to an existing const entry should fail")
	}
	v, _ := m.Read("x")
	if n, ok := v.(NumberValue); !ok || float64(n) != 1 {
		t.Errorf("value changed despite refused write: %v", v)
	}
}

func TestFieldMapWriteNewConst(t *testing.T) {
	m := NewFieldMap()
	if !m.WriteNewConst("x", Number(1)) {
		t.Fatal("WriteNewConst on a fresh name should succeed")
	}
	if !m.IsConst("x") {
		t.Error("expected x to be const")
	}
}

func TestFieldMapWriteNewConstRefusesExisting(t *testing.T) {
	m := NewFieldMap()
	m.Write("x", Number(1), false)
	if m.WriteNewConst("x", Number(2)) {
		t.Fatal("WriteNewConst should refuse a name that already exists, mutable or not")
	}
}

func TestFieldMapNamesPreservesInsertionOrder(t *testing.T) {
	m := NewFieldMap()
	m.Write("b", Number(1), false)
	m.Write("a", Number(2), false)
	m.Write("c", Number(3), false)
	got := m.Names()
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i, n := range want {
		if got[i] != n {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], n)
		}
	}
}

func TestFieldMapClone(t *testing.T) {
	m := NewFieldMap()
	m.Write("x", Number(1), true)
	clone := m.Clone()
	if clone.Len() != 1 || !clone.IsConst("x") {
		t.Fatalf("clone = %+v, want one const field x", clone)
	}
	clone.entries["x"] = fieldEntry{value: Number(2), isConst: true}
	v, _ := m.Read("x")
	if n, ok := v.(NumberValue); !ok || float64(n) != 1 {
		t.Errorf("mutating the clone affected the original: %v", v)
	}
}

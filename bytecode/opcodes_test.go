package bytecode

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Op{
		{Family: FamNOP},
		{Family: FamPOP},
		{Family: FamRdField},
		{Family: FamWrField},
		{Family: FamCall, N: 0},
		{Family: FamCall, N: 3},
		{Family: FamCopy, N: 0},
		{Family: FamCopy, N: 7},
		{Family: FamWrite, N: 2},
		{Family: FamPushConst, N: 0},
		{Family: FamPushConst, N: 62},
		// 64th constant (index 63) forces the 16-bit form (§8 boundary).
		{Family: FamPushConst, N: 63},
		{Family: FamPushConst, N: 1000},
	}

	for _, op := range cases {
		t.Run(op.Family.String(), func(t *testing.T) {
			buf, err := Encode(nil, op)
			if err != nil {
				t.Fatalf("Encode(%v): %v", op, err)
			}
			got, next, err := Decode(buf, 0)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if next != len(buf) {
				t.Errorf("next = %d, want %d", next, len(buf))
			}
			if got.Family != op.Family || got.N != op.N {
				t.Errorf("round-trip = %+v, want %+v", got, op)
			}
		})
	}
}

func TestPushConstWidthBoundary(t *testing.T) {
	// Exactly 63 entries (indices 0..62) fit the 8-bit PUSHC encoding;
	// the 64th (index 63) needs the 16-bit form.
	narrow, err := Encode(nil, Op{Family: FamPushConst, N: 62})
	if err != nil {
		t.Fatalf("Encode(62): %v", err)
	}
	wide, err := Encode(nil, Op{Family: FamPushConst, N: 63})
	if err != nil {
		t.Fatalf("Encode(63): %v", err)
	}
	if len(wide) <= len(narrow) {
		t.Errorf("expected index 63 to need more bytes than index 62 (got %d vs %d)", len(wide), len(narrow))
	}
}

func TestStackDelta(t *testing.T) {
	cases := []struct {
		op   Op
		want int
	}{
		{Op{Family: FamPOP}, -1},
		{Op{Family: FamPushThis}, 1},
		{Op{Family: FamPushConst}, 1},
		{Op{Family: FamCall, N: 0}, 0},  // pops callee, pushes result
		{Op{Family: FamCall, N: 2}, -2}, // pops callee + 2 args, pushes result
		{Op{Family: FamCopy, N: 0}, 1},
		{Op{Family: FamWrite, N: 0}, 0}, // overwrites a slot below top, net-neutral
	}
	for _, c := range cases {
		if got := StackDelta(c.op); got != c.want {
			t.Errorf("StackDelta(%+v) = %d, want %d", c.op, got, c.want)
		}
	}
}

func TestBuilderEmit(t *testing.T) {
	b := NewBuilder()
	if err := b.Emit(Op{Family: FamPushThis}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := b.Emit(Op{Family: FamPOP}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if b.Len() == 0 {
		t.Error("expected non-empty buffer after emitting instructions")
	}

	op, next, err := Decode(b.Bytes(), 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if op.Family != FamPushThis {
		t.Errorf("first decoded op = %s, want PUSH_THIS", op.Family)
	}
	if next >= b.Len() {
		t.Error("expected more bytes after the first instruction")
	}
}

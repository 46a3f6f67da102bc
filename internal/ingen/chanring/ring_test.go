package chanring

import "testing"

func TestPushPopPreservesOrder(t *testing.T) {
	r := New[int](4)
	for i := 0; i < 4; i++ {
		if !r.Push(i) {
			t.Fatalf("Push(%d) failed unexpectedly", i)
		}
	}
	for i := 0; i < 4; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = %d, %v; want %d, true", v, ok, i)
		}
	}
	if !r.Empty() {
		t.Fatal("expected ring to be empty after draining")
	}
}

func TestPopOnEmptyFails(t *testing.T) {
	r := New[string](2)
	if _, ok := r.Pop(); ok {
		t.Fatal("expected Pop on empty ring to fail")
	}
}

func TestPushWrapsAndReuses(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	r.Push(2)
	if v, _ := r.Pop(); v != 1 {
		t.Fatalf("got %d, want 1", v)
	}
	r.Push(3)
	if v, _ := r.Pop(); v != 2 {
		t.Fatalf("got %d, want 2", v)
	}
	if v, _ := r.Pop(); v != 3 {
		t.Fatalf("got %d, want 3", v)
	}
}

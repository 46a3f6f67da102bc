package types

import "testing"

func TestNewPathValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		wantErr bool
	}{
		{"/", false},
		{"/foo", false},
		{"/foo/bar", false},
		{"/foo/_bar1", false},
		{"foo", true},
		{"/1foo", true},
		{"/foo/", true},
	}
	for _, tc := range cases {
		_, err := NewPath(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("NewPath(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
	}
}

func TestPathChildAndParent(t *testing.T) {
	t.Parallel()

	root := Root
	a := root.Child("a")
	if a != "/a" {
		t.Fatalf("root.Child(a) = %q", a)
	}
	b := a.Child("b")
	if b != "/a/b" {
		t.Fatalf("a.Child(b) = %q", b)
	}
	parent, ok := b.Parent()
	if !ok || parent != a {
		t.Fatalf("b.Parent() = %q, %v", parent, ok)
	}
	if _, ok := root.Parent(); ok {
		t.Fatalf("root.Parent() should have ok=false")
	}
	if b.Symbol() != "b" {
		t.Fatalf("b.Symbol() = %q", b.Symbol())
	}
}

func TestPathIsChildOf(t *testing.T) {
	t.Parallel()

	if !Path("/a/b").IsChildOf("/a") {
		t.Fatal("/a/b should be child of /a")
	}
	if Path("/a/b").IsChildOf("/c") {
		t.Fatal("/a/b should not be child of /c")
	}
	if !Path("/a").IsDirectChildOf(Root) {
		t.Fatal("/a should be direct child of root")
	}
	if Path("/a/b").IsDirectChildOf(Root) {
		t.Fatal("/a/b should not be direct child of root")
	}
}

func TestURIMapInternsStably(t *testing.T) {
	t.Parallel()

	m := NewURIMap()
	id1 := m.Map(URIAudioPort)
	id2 := m.Map(URIAudioPort)
	if id1 != id2 {
		t.Fatalf("interning the same URI twice gave different ids: %d vs %d", id1, id2)
	}
	u, ok := m.Unmap(id1)
	if !ok || u != URIAudioPort {
		t.Fatalf("Unmap(%d) = %q, %v", id1, u, ok)
	}
}

func TestAtomAsFloat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		atom Atom
		want float64
		ok   bool
	}{
		{IntAtom(3), 3, true},
		{FloatAtom(1.5), 1.5, true},
		{BoolAtom(true), 1, true},
		{BoolAtom(false), 0, true},
		{StringAtom("x"), 0, false},
	}
	for _, tc := range cases {
		got, ok := tc.atom.AsFloat()
		if ok != tc.ok || got != tc.want {
			t.Errorf("%v.AsFloat() = %v, %v; want %v, %v", tc.atom, got, ok, tc.want, tc.ok)
		}
	}
}

package comparator

import "testing"

func reverse(a, b []byte) int {
	return Lexicographic(b, a)
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	if err := r.Register("reverse", reverse); err != nil {
		t.Fatalf("Register: %v", err)
	}

	fn, ok := r.Lookup("reverse")
	if !ok {
		t.Fatal("expected reverse comparator to be found")
	}
	if fn([]byte("a"), []byte("b")) <= 0 {
		t.Error("reverse comparator should order \"a\" after \"b\"")
	}
}

func TestLookupDefaultsToLexicographic(t *testing.T) {
	r := New()
	fn, ok := r.Lookup("")
	if !ok {
		t.Fatal("empty name must always resolve")
	}
	if fn([]byte("a"), []byte("b")) >= 0 {
		t.Error("default comparator should be lexicographic")
	}
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := New()
	if err := r.Register("x", Lexicographic); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("x", Lexicographic); err == nil {
		t.Fatal("expected error re-registering same name")
	}
}

func TestLookupUnknown(t *testing.T) {
	r := New()
	if _, ok := r.Lookup("nope"); ok {
		t.Fatal("expected unknown comparator name to miss")
	}
}

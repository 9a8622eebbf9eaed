package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	if a != b {
		t.Fatalf("sum not stable: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
	if Sum([]byte("hello!")) == a {
		t.Error("different input produced the same sum")
	}
}

func TestEqual(t *testing.T) {
	data := []byte("body")
	if !Equal(data, Sum(data)) {
		t.Error("expected match")
	}
	if Equal(data, "") {
		t.Error("empty sum should never match")
	}
}

package contenthash

import "testing"

func TestSumLength(t *testing.T) {
	h := Sum("hello world")
	if len(h) != 64 {
		t.Fatalf("expected 64 chars, got %d", len(h))
	}
	if !Valid(h) {
		t.Fatalf("expected %q to be valid", h)
	}
}

func TestSumDeterministic(t *testing.T) {
	a := Sum("same content")
	b := Sum("same content")
	if a != b {
		t.Fatalf("expected deterministic hash, got %q and %q", a, b)
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	cases := []string{"", "abc", "mem_" + Sum("x"), Sum("x") + "Z"}
	for _, c := range cases {
		if Valid(c) {
			t.Fatalf("expected %q to be invalid", c)
		}
	}
}

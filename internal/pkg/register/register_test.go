package register

import "testing"

func TestBindDetectsCollision(t *testing.T) {
	r := New()
	if err := r.Bind("topic/x", "eui-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Bind("topic/x", "eui-b"); err == nil {
		t.Fatalf("expected collision error")
	}
}

func TestBindIdempotentForSameOwner(t *testing.T) {
	r := New()
	if err := r.Bind("topic/x", "eui-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Bind("topic/x", "eui-a"); err != nil {
		t.Fatalf("re-binding the same owner should succeed: %v", err)
	}
}

func TestReleaseAndStatus(t *testing.T) {
	r := New()
	_ = r.Bind("topic/x", "eui-a")
	r.Release("topic/x")
	if _, ok := r.Status("topic/x"); ok {
		t.Fatalf("expected topic to be unbound after release")
	}
}

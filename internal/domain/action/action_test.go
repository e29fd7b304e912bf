package action

import "testing"

func TestIsValid(t *testing.T) {
	for _, k := range Kinds() {
		if !k.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", k)
		}
	}

	invalid := []Kind{"", "remove", "CREATE", "soft_delete"}
	for _, k := range invalid {
		if k.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", k)
		}
	}
}

func TestParse(t *testing.T) {
	k, err := Parse("undelete")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != Undelete {
		t.Errorf("Parse() = %q, want %q", k, Undelete)
	}

	if _, err := Parse("purge"); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

package diag

import "testing"

func TestErrorfSetsHasErrors(t *testing.T) {
	Reset()
	if HasErrors() {
		t.Fatal("HasErrors should be false after Reset")
	}

	Errorf("bad thing: %s", "reason")
	if !HasErrors() {
		t.Fatal("HasErrors should be true after Errorf")
	}
}

func TestWarnfDoesNotSetHasErrors(t *testing.T) {
	Reset()
	Warnf("just a warning")
	if HasErrors() {
		t.Fatal("Warnf must not set HasErrors")
	}
}

func TestResetClearsFlag(t *testing.T) {
	Errorf("boom")
	Reset()
	if HasErrors() {
		t.Fatal("Reset should clear a previously set error flag")
	}
}

package utils

import "testing"

func TestMapSetAddAndContains(t *testing.T) {
	s := NewMapSet[string]()
	if s.Contains("a") {
		t.Fatal("empty set should not contain anything")
	}

	s.Add("a")
	if !s.Contains("a") {
		t.Fatal("set should contain a value after Add")
	}
	if s.Contains("b") {
		t.Fatal("set should not contain a value that was never added")
	}
}

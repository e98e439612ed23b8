package linker

import "testing"

func TestMergedSectionInsertDeduplicates(t *testing.T) {
	m := NewMergedSection(".hdata", 0, 0)

	a := m.Insert("hello", 0)
	b := m.Insert("hello", 2)

	if a != b {
		t.Fatal("Insert with the same key must return the same fragment")
	}
	if a.P2Align != 2 {
		t.Fatalf("P2Align = %d, want 2 (max of the two inserts)", a.P2Align)
	}
}

func TestMergedSectionAssignOffsetsSkipsDead(t *testing.T) {
	m := NewMergedSection(".hdata", 0, 0)

	live := m.Insert("keepme", 0)
	live.IsAlive = true

	dead := m.Insert("dropme", 0)
	dead.IsAlive = false

	m.AssignOffsets()

	if dead.Offset != 0xffffffff {
		t.Errorf("dead fragment offset should remain unassigned sentinel, got %#x", dead.Offset)
	}
	if live.Offset == 0xffffffff {
		t.Error("live fragment should have been assigned a real offset")
	}
	if m.Shdr.Size == 0 {
		t.Error("Shdr.Size should reflect the live fragment's length")
	}
}

func TestSectionFragmentGetAddr(t *testing.T) {
	m := NewMergedSection(".hdata", 0, 0)
	m.Shdr.Addr = 0x80005000

	frag := m.Insert("x", 0)
	frag.Offset = 0x10

	if got := frag.GetAddr(); got != 0x80005010 {
		t.Errorf("GetAddr() = %#x, want %#x", got, 0x80005010)
	}
}

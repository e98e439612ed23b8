package linker

import "testing"

func TestMergeableSectionGetFragment(t *testing.T) {
	frags := []*SectionFragment{{}, {}, {}}
	m := &MergeableSection{
		FragOffsets: []uint32{0, 6, 13},
		Fragments:   frags,
	}

	frag, rem := m.GetFragment(6)
	if frag != frags[1] || rem != 0 {
		t.Errorf("GetFragment(6) = %v, %d, want frags[1], 0", frag, rem)
	}

	frag, rem = m.GetFragment(9)
	if frag != frags[1] || rem != 3 {
		t.Errorf("GetFragment(9) = %v, %d, want frags[1], 3", frag, rem)
	}

	frag, rem = m.GetFragment(20)
	if frag != frags[2] || rem != 7 {
		t.Errorf("GetFragment(20) = %v, %d, want frags[2], 7", frag, rem)
	}
}

func TestMergeableSectionGetFragmentBeforeFirstOffset(t *testing.T) {
	m := &MergeableSection{
		FragOffsets: []uint32{5, 10},
		Fragments:   []*SectionFragment{{}, {}},
	}

	frag, _ := m.GetFragment(2)
	if frag != nil {
		t.Error("an offset before the first fragment should return nil")
	}
}

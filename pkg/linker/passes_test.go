package linker

import "testing"

func makeNamedOutputSection(name string, size uint32) *OutputSection {
	o := NewOutputSection(name, 0, 0, 0)
	o.Shdr.Size = size
	o.Members = []*InputSection{{}}
	return o
}

// CollectOutputSections must return the four fixed sections in script
// order regardless of the order they were first created in.
func TestCollectOutputSectionsScriptOrder(t *testing.T) {
	ctx := NewContext()
	ctx.OutputSections = []*OutputSection{
		makeNamedOutputSection(".hdata", 4),
		makeNamedOutputSection(".htext", 4),
		makeNamedOutputSection(".sdata2", 4),
		makeNamedOutputSection(".sdata", 4),
	}

	osecs := CollectOutputSections(ctx)
	if len(osecs) != 4 {
		t.Fatalf("len(osecs) = %d, want 4", len(osecs))
	}

	want := []string{".sdata", ".sdata2", ".htext", ".hdata"}
	for i, name := range want {
		if osecs[i].GetName() != name {
			t.Errorf("osecs[%d] = %q, want %q", i, osecs[i].GetName(), name)
		}
	}
}

func TestCollectOutputSectionsSkipsEmpty(t *testing.T) {
	ctx := NewContext()
	empty := NewOutputSection(".sdata", 0, 0, 0)
	nonEmpty := makeNamedOutputSection(".htext", 4)
	ctx.OutputSections = []*OutputSection{empty, nonEmpty}

	osecs := CollectOutputSections(ctx)
	if len(osecs) != 1 || osecs[0].GetName() != ".htext" {
		t.Fatalf("CollectOutputSections should drop sections with no members, got %v", osecs)
	}
}

// SetOsecOffsets lays sections out sequentially starting at the initial
// offsets, each rounded up to CommonAlignment.
func TestSetOsecOffsetsLaysOutSequentially(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.InitialFileOffset = 0x140
	ctx.Arg.InitialAddrOffset = 0x80004140
	ctx.Arg.CommonAlignment = 32

	a := makeNamedOutputSection(".sdata", 10)
	b := makeNamedOutputSection(".htext", 40)
	osecs := []Chunker{a, b}

	fileSize := SetOsecOffsets(ctx, osecs)

	if a.Shdr.Offset != 0x140 {
		t.Errorf("first section offset = %#x, want %#x", a.Shdr.Offset, 0x140)
	}
	if a.Shdr.Addr != 0x80004140 {
		t.Errorf("first section addr = %#x, want %#x", a.Shdr.Addr, 0x80004140)
	}

	wantBOffset := uint32(0x140 + 32) // 10 bytes rounds up to next 32-alignment
	if b.Shdr.Offset != wantBOffset {
		t.Errorf("second section offset = %#x, want %#x", b.Shdr.Offset, wantBOffset)
	}

	wantFileSize := uint64(wantBOffset) + 40
	if fileSize != wantFileSize {
		t.Errorf("fileSize = %#x, want %#x", fileSize, wantFileSize)
	}
}

package ppcscan

import "testing"

func encodeLis(rd uint32, imm uint16) uint32 {
	return (opLis << 26) | (rd << 21) | uint32(imm)
}

func encodeOri(ra_, rs uint32, imm uint16) uint32 {
	return (opOri << 26) | (rs << 21) | (ra_ << 16) | uint32(imm)
}

func encodeBl(disp int32, absolute bool) uint32 {
	word := (uint32(opBl) << 26) | (uint32(disp) & 0x03fffffc) | 0x1
	if absolute {
		word |= 0x2
	}
	return word
}

func beBytes(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		beWrite32(buf[i*4:], w)
	}
	return buf
}

// Scenario 4: lis r1,0x8040; ori r1,r1,0x1234 recovers StackBase.
func TestScanRecoversStackBase(t *testing.T) {
	words := beBytes(
		encodeLis(1, 0x8040),
		encodeOri(1, 1, 0x1234),
	)

	_, bases := Scan([]Slot{{Bytes: words, FileOffset: 0x100, Addr: 0x80003100}})

	if bases.StackBase != 0x80401234 {
		t.Fatalf("StackBase = %#x, want %#x", bases.StackBase, uint32(0x80401234))
	}
}

func TestScanRecoversSdataAndSdata2Bases(t *testing.T) {
	words := beBytes(
		encodeLis(13, 0x8050),
		encodeOri(13, 13, 0x0000),
		encodeLis(2, 0x8060),
		encodeOri(2, 2, 0x0010),
	)

	_, bases := Scan([]Slot{{Bytes: words, FileOffset: 0x100, Addr: 0x80003100}})

	if bases.SdataBase != 0x80500000 {
		t.Fatalf("SdataBase = %#x, want %#x", bases.SdataBase, uint32(0x80500000))
	}
	if bases.Sdata2Base != 0x80600010 {
		t.Fatalf("Sdata2Base = %#x, want %#x", bases.Sdata2Base, uint32(0x80600010))
	}
}

// Scenario 5: bl 0x80003200 at file offset 0x108 is indexed under its
// target VA.
func TestScanIndexesCallSites(t *testing.T) {
	pc := uint32(0x80003108)
	target := uint32(0x80003200)
	disp := int32(target - pc)

	words := beBytes(
		encodeLis(0, 0), // two fillers so the call lands at file offset 0x108
		encodeLis(0, 0),
		encodeBl(disp, false),
	)

	idx, _ := Scan([]Slot{{Bytes: words, FileOffset: 0x100, Addr: 0x80003100}})

	sites := idx.Lookup(target)
	if len(sites) != 1 {
		t.Fatalf("Lookup(target) returned %d sites, want 1", len(sites))
	}
	if sites[0].FileOffset != 0x108 || sites[0].VA != pc {
		t.Fatalf("site = %+v, want FileOffset=0x108 VA=%#x", sites[0], pc)
	}
}

func TestScanIgnoresUnconditionalBranchWithoutLK(t *testing.T) {
	word := (uint32(opBl) << 26) | (0x10 & 0x03fffffc)
	words := beBytes(word)

	idx, _ := Scan([]Slot{{Bytes: words, FileOffset: 0x100, Addr: 0x80003100}})

	if len(idx) != 0 {
		t.Fatalf("a non-LK branch must not be indexed as a call site, got %d entries", len(idx))
	}
}

func TestPatchRelocationRelative(t *testing.T) {
	pc := uint32(0x80003108)
	oldTarget := uint32(0x80003200)
	newTarget := uint32(0x80003400)

	buf := beBytes(encodeBl(int32(oldTarget-pc), false))

	if err := PatchRelocation(buf, 0, pc, newTarget); err != nil {
		t.Fatalf("PatchRelocation: %v", err)
	}

	word := beUint32(buf)
	if !isCall(word) {
		t.Fatal("patched word should still be a recognizable call")
	}

	raw := word & 0x03fffffc
	if raw&0x02000000 != 0 {
		raw |= 0xfc000000
	}
	if got := pc + raw; got != newTarget {
		t.Fatalf("patched target = %#x, want %#x", got, newTarget)
	}
}

func TestPatchRelocationRejectsOutOfRange(t *testing.T) {
	buf := beBytes(encodeBl(0, false))

	err := PatchRelocation(buf, 0, 0, 0x10000000)
	if err == nil {
		t.Fatal("PatchRelocation should reject a displacement beyond ±32 MiB")
	}
	var rangeErr *RangeError
	if _, ok := err.(*RangeError); !ok {
		t.Fatalf("error type = %T, want *RangeError (%v)", err, rangeErr)
	}
}

func TestPatchCallSitesPatchesEveryRecordedSite(t *testing.T) {
	buf := beBytes(encodeBl(0x100, false), encodeBl(0x100, false))
	idx := NewCallSiteIndex()
	idx.add(0x80003100, CallSite{FileOffset: 0, VA: 0x80003000})
	idx.add(0x80003100, CallSite{FileOffset: 4, VA: 0x80003004})

	if err := PatchCallSites(buf, idx, 0x80003100, 0x80004000); err != nil {
		t.Fatalf("PatchCallSites: %v", err)
	}

	for i, site := range idx.Lookup(0x80003100) {
		if got := callTarget(beUint32(buf[site.FileOffset:]), site.VA); got != 0x80004000 {
			t.Fatalf("site %d target = %#x, want %#x", i, got, uint32(0x80004000))
		}
	}
}

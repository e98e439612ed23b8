package linker

import "testing"

func TestRelaSymAndTypePackedIntoInfo(t *testing.T) {
	r := &Rela{}
	r.SetSym(0x1234)
	r.Info |= 0x07 // R_PPC_ADDR32's encoding, low byte of Info.

	if got := r.Sym(); got != 0x1234 {
		t.Fatalf("Sym() = %#x, want %#x", got, 0x1234)
	}
	if got := r.Type(); got != 0x07 {
		t.Fatalf("Type() = %#x, want %#x", got, 0x07)
	}
}

func TestRelaSetSymPreservesType(t *testing.T) {
	r := &Rela{Info: (0x1 << 8) | 0x07}
	r.SetSym(0x99)

	if got := r.Type(); got != 0x07 {
		t.Fatalf("Type() after SetSym = %#x, want %#x", got, 0x07)
	}
	if got := r.Sym(); got != 0x99 {
		t.Fatalf("Sym() after SetSym = %#x, want %#x", got, 0x99)
	}
}

func TestSymBindAndType(t *testing.T) {
	s := &Sym{}
	s.SetBind(0x10) // STB_GLOBAL << 4
	s.SetType(0x2)  // STT_FUNC

	if s.Bind() != 0x1 {
		t.Fatalf("Bind() = %#x, want %#x", s.Bind(), 0x1)
	}
	if s.Type() != 0x2 {
		t.Fatalf("Type() = %#x, want %#x", s.Type(), 0x2)
	}
}

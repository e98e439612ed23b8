package linker

import (
	"debug/elf"
	"testing"

	"github.com/hanafuda-tools/ldpatch/pkg/dol"
)

// Scenario 2: a DOL-sourced entry is installed as an absolute symbol
// carrying its kind and index.
func TestInjectDolSymbolsInstallsAbsoluteSymbol(t *testing.T) {
	ctx := NewContext()
	InjectDolSymbols(ctx, []DolSymbolEntry{
		{Name: "foo", Value: 0x80003100, Kind: dol.Text, Index: 0},
	})

	ctx.Objs[0].ResolveSymbols(ctx)

	sym := GetSymbolByName(ctx, "foo")
	if !sym.IsAbsolute {
		t.Fatal("DOL-sourced symbol should be marked absolute")
	}
	if sym.Value != 0x80003100 {
		t.Fatalf("Value = %#x, want %#x", sym.Value, uint64(0x80003100))
	}
	if sym.HanafudaKind != dol.Text || sym.HanafudaIndex != 0 {
		t.Fatalf("HanafudaKind/Index = %v/%d, want Text/0", sym.HanafudaKind, sym.HanafudaIndex)
	}
}

// A real object's definition of the same name must win resolution over
// the DOL-sourced default, and the old VA must be queued for the
// Relocation Patcher (spec.md section 4.4.1.a).
func TestRealObjectReplacesDolSourcedSymbol(t *testing.T) {
	ctx := NewContext()
	InjectDolSymbols(ctx, []DolSymbolEntry{
		{Name: "foo", Value: 0x80003100, Kind: dol.Text, Index: 0},
	})
	ctx.Objs[0].ResolveSymbols(ctx)

	real := &ObjectFile{}
	real.IsAlive = true
	real.Priority = 10000
	real.FirstGlobal = 1
	real.Symbols = append(real.Symbols, NewSymbol(""))
	real.ElfSyms = append(real.ElfSyms, Sym{})

	sym := GetSymbolByName(ctx, "foo")
	real.Symbols = append(real.Symbols, sym)
	real.ElfSyms = append(real.ElfSyms, Sym{
		Val:   0x80009000,
		Info:  uint8(elf.STB_GLOBAL)<<4 | uint8(elf.STT_FUNC),
		Shndx: uint16(elf.SHN_ABS),
	})

	real.ResolveSymbols(ctx)

	if len(ctx.PendingReplacements) != 1 {
		t.Fatalf("PendingReplacements = %d, want 1", len(ctx.PendingReplacements))
	}
	if ctx.PendingReplacements[0].OldVA != 0x80003100 {
		t.Fatalf("OldVA = %#x, want %#x", ctx.PendingReplacements[0].OldVA, uint32(0x80003100))
	}
	if sym.File != real {
		t.Fatal("symbol should now be owned by the real object")
	}
	if sym.IsAbsolute {
		t.Fatal("symbol defined by a real object must not stay absolute")
	}
}
